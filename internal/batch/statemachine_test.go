package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

type fakeStore struct {
	batch *models.JobBatch
}

func (f *fakeStore) LockJobBatch(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	return f.batch, nil
}

func (f *fakeStore) UpdateJobBatchCounters(ctx context.Context, batch *models.JobBatch) error {
	f.batch = batch
	return nil
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) NotifyShardOutcome(ctx context.Context, batch *models.JobBatch, batchNumber int, shardFailed bool) error {
	f.calls++
	return nil
}

func newTestBatch(total int) *models.JobBatch {
	return &models.JobBatch{ID: uuid.New(), TotalBatches: total, Status: models.JobBatchProcessing}
}

func TestRecordShardAllSuccessYieldsCompleted(t *testing.T) {
	b := newTestBatch(2)
	store := &fakeStore{batch: b}
	notifier := &fakeNotifier{}
	sm := New(store, notifier)

	if err := sm.RecordShard(context.Background(), b.ID, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.batch.Status != models.JobBatchProcessing {
		t.Fatalf("expected still-processing after first shard, got %s", store.batch.Status)
	}

	if err := sm.RecordShard(context.Background(), b.ID, 2, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.batch.Status != models.JobBatchCompleted {
		t.Errorf("expected completed status, got %s", store.batch.Status)
	}
	if store.batch.CompletedAt == nil {
		t.Errorf("expected CompletedAt to be stamped")
	}
	if notifier.calls != 2 {
		t.Errorf("expected 2 notifications, got %d", notifier.calls)
	}
}

func TestRecordShardAllFailedYieldsFailed(t *testing.T) {
	b := newTestBatch(2)
	store := &fakeStore{batch: b}
	sm := New(store, &fakeNotifier{})

	sm.RecordShard(context.Background(), b.ID, 1, true)
	sm.RecordShard(context.Background(), b.ID, 2, true)

	if store.batch.Status != models.JobBatchFailed {
		t.Errorf("expected failed status, got %s", store.batch.Status)
	}
}

func TestRecordShardMixedYieldsCompletedWithErrors(t *testing.T) {
	b := newTestBatch(2)
	store := &fakeStore{batch: b}
	sm := New(store, &fakeNotifier{})

	sm.RecordShard(context.Background(), b.ID, 1, true)
	sm.RecordShard(context.Background(), b.ID, 2, false)

	if store.batch.Status != models.JobBatchCompletedWithErrors {
		t.Errorf("expected completed_with_errors status, got %s", store.batch.Status)
	}
}

func TestRecordShardRetryGuardSkipsDuplicateIncrement(t *testing.T) {
	b := newTestBatch(1)
	store := &fakeStore{batch: b}
	notifier := &fakeNotifier{}
	sm := New(store, notifier)

	if err := sm.RecordShard(context.Background(), b.ID, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.batch.CompletedBatches != 1 {
		t.Fatalf("expected 1 completed batch, got %d", store.batch.CompletedBatches)
	}

	// Redelivery of the same shard outcome must not double-increment
	// or fire a second notification.
	if err := sm.RecordShard(context.Background(), b.ID, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.batch.CompletedBatches != 1 {
		t.Errorf("expected counter unchanged by duplicate delivery, got %d", store.batch.CompletedBatches)
	}
	if notifier.calls != 1 {
		t.Errorf("expected exactly 1 notification despite duplicate delivery, got %d", notifier.calls)
	}
}

func TestApplyIncrementStampsCompletedAt(t *testing.T) {
	restore := nowFunc
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = restore }()

	b := newTestBatch(1)
	applyIncrement(b, false)

	if b.CompletedAt == nil || !b.CompletedAt.Equal(fixed) {
		t.Errorf("expected CompletedAt %v, got %v", fixed, b.CompletedAt)
	}
}
