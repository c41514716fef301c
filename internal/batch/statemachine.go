// Package batch implements the job-batch completion state machine from
// §4.2: each dispatcher worker reports exactly one shard outcome back
// through StateMachine.RecordShard, and the last shard to
// land derives the batch's terminal status and fires exactly one
// notification.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

// nowFunc is overridden in tests to produce deterministic CompletedAt
// timestamps.
var nowFunc = time.Now

// Store is the persistence seam the state machine needs from the
// JobBatch repository: a transactional read-then-write of the shard
// counters, scoped to the row the worker is updating.
type Store interface {
	// LockJobBatch reads the current counters for update, guaranteeing
	// the caller observes a consistent snapshot for the retry guard.
	LockJobBatch(ctx context.Context, id uuid.UUID) (*models.JobBatch, error)
	// UpdateJobBatchCounters persists the new counters and, if status
	// is non-empty, the terminal status and completion timestamp.
	UpdateJobBatchCounters(ctx context.Context, batch *models.JobBatch) error
}

// Notifier is called exactly once per shard completion, keyed by
// (jobBatchID, batchNumber), once this shard's outcome has been durably
// recorded.
type Notifier interface {
	NotifyShardOutcome(ctx context.Context, batch *models.JobBatch, batchNumber int, shardFailed bool) error
}

// StateMachine advances a JobBatch's completion counters and derives its
// terminal status per §4.2.
type StateMachine struct {
	store    Store
	notifier Notifier
}

func New(store Store, notifier Notifier) *StateMachine {
	return &StateMachine{store: store, notifier: notifier}
}

// RecordShard applies one shard's outcome to its owning JobBatch. It is
// safe to call more than once for the same (jobBatchID, batchNumber) —
// the retry guard in applyIncrement makes a redelivered shard outcome a
// no-op once the batch has already accounted for every shard.
func (sm *StateMachine) RecordShard(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, failed bool) error {
	batch, err := sm.store.LockJobBatch(ctx, jobBatchID)
	if err != nil {
		return fmt.Errorf("batch: lock job batch %s: %w", jobBatchID, err)
	}

	applied := applyIncrement(batch, failed)
	if err := sm.store.UpdateJobBatchCounters(ctx, batch); err != nil {
		return fmt.Errorf("batch: update counters for %s: %w", jobBatchID, err)
	}

	if !applied {
		// Retry guard tripped: this shard was already accounted for.
		// No new state transition occurred, so no new notification.
		return nil
	}

	if sm.notifier != nil {
		if err := sm.notifier.NotifyShardOutcome(ctx, batch, batchNumber, failed); err != nil {
			return fmt.Errorf("batch: notify shard outcome for %s: %w", jobBatchID, err)
		}
	}
	return nil
}

// applyIncrement mutates batch in place per §4.2's algorithm:
//  1. skip the increment entirely if completed+failed already covers
//     every shard (a redelivered/duplicate outcome);
//  2. otherwise increment the matching counter;
//  3. if that increment completes the batch, derive its terminal status
//     and stamp CompletedAt.
//
// It reports whether a new increment was actually applied, so the
// caller can suppress a duplicate notification.
func applyIncrement(b *models.JobBatch, failed bool) bool {
	if b.CompletedBatches+b.FailedBatches >= b.TotalBatches {
		return false
	}

	if failed {
		b.FailedBatches++
	} else {
		b.CompletedBatches++
	}

	if b.CompletedBatches+b.FailedBatches == b.TotalBatches {
		b.Status = terminalStatus(b.CompletedBatches, b.FailedBatches)
		now := nowFunc()
		b.CompletedAt = &now
	}
	return true
}

// terminalStatus derives the batch's final status from its shard tally,
// per §4.2: all-success -> completed, all-failure -> failed, otherwise
// a mixed result -> completed_with_errors.
func terminalStatus(completed, failed int) models.JobBatchStatus {
	switch {
	case failed == 0:
		return models.JobBatchCompleted
	case completed == 0:
		return models.JobBatchFailed
	default:
		return models.JobBatchCompletedWithErrors
	}
}
