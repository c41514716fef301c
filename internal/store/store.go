// Package store defines the persistence seams the rest of the pipeline
// depends on and a jmoiron/sqlx + lib/pq Postgres implementation of
// them, replacing the teacher's external senso-api repository package
// (services/interfaces.go's RepositoryManager) with repositories scoped
// to this pipeline's own domain: Project, Prompt, Tag, JobBatch and
// TrackingResult.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

// ProjectRepository reads and updates Projects, including the nightly
// scheduler's cadence bookkeeping.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListScheduled(ctx context.Context) ([]*models.Project, error)
	UpdateLastNightlyRunAt(ctx context.Context, id uuid.UUID, runAt time.Time) error
}

// PromptRepository reads a project's tracked, enabled prompts.
type PromptRepository interface {
	ListEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error)

	// GetByID backs the provider-B callback's nightly path (§4.4b step 4):
	// nightly callbacks have no pre-existing TrackingResult, so the
	// handler must load the Prompt directly to build a fresh row.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
}

// TagRepository resolves project-scoped tags by name.
type TagRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Tag, error)

	// Upsert resolves name to an existing project-scoped tag by a
	// case-insensitive match, or creates one with a default color,
	// per §4.1 step 4.
	Upsert(ctx context.Context, projectID uuid.UUID, name string) (*models.Tag, error)
}

// UserKeyRepository resolves a user's stored OpenAI credentials from the
// externally-owned user_settings table (§6's "persisted state" list).
type UserKeyRepository interface {
	OpenAIKeyForUser(ctx context.Context, userID uuid.UUID) (apiKey, model string, err error)
}

// SubmissionRepository persists a whole submission — the JobBatch, its
// Prompt rows, and their initial pending TrackingResult rows — as one
// transactional unit, per §4.1 step 6 ("if either insert fails, the
// batch row is rolled back").
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, batch *models.JobBatch, prompts []*models.Prompt, results []*models.TrackingResult) error
	TransitionProcessing(ctx context.Context, jobBatchID uuid.UUID) error
}

// JobBatchRepository persists JobBatch aggregates and their shard
// counters. It backs internal/batch.Store.
type JobBatchRepository interface {
	Create(ctx context.Context, batch *models.JobBatch) error

	// GetByID backs the provider-B callback's submitted path (§4.4b
	// step 4): the brand/domain snapshot a job was submitted with lives
	// on its JobBatch row, not on the TrackingResult, so enrichment must
	// reload it from here.
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobBatch, error)
	LockJobBatch(ctx context.Context, id uuid.UUID) (*models.JobBatch, error)
	UpdateJobBatchCounters(ctx context.Context, batch *models.JobBatch) error
}

// TrackingResultRepository persists per-prompt outcomes.
type TrackingResultRepository interface {
	Create(ctx context.Context, result *models.TrackingResult) error
	UpdateStatus(ctx context.Context, result *models.TrackingResult) error
	FindByExternalTaskID(ctx context.Context, externalTaskID string) (*models.TrackingResult, error)
	ExistsForCorrelation(ctx context.Context, correlationID string) (bool, error)
}
