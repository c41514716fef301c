package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/config"
	"github.com/aivisible/prompt-pipeline/internal/models"
)

// Open connects to Postgres with the pool settings from cfg, mirroring
// the teacher's database.Client construction (sqlx.Connect + explicit
// pool sizing) but against this pipeline's own discrete DSN fields.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	return db, nil
}

// ProjectStore is the Postgres-backed ProjectRepository.
type ProjectStore struct{ db *sqlx.DB }

func NewProjectStore(db *sqlx.DB) *ProjectStore { return &ProjectStore{db: db} }

func (s *ProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, user_id, name, scheduler_frequency, last_nightly_run_at
		FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.New(apierr.InvalidRequest, "project not found")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "load project", err)
	}
	return &p, nil
}

// ListScheduled returns every project with a non-null scheduler_frequency,
// the fan-out source for the nightly scheduler (§4.7 step 3).
func (s *ProjectStore) ListScheduled(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	err := s.db.SelectContext(ctx, &projects, `
		SELECT id, user_id, name, scheduler_frequency, last_nightly_run_at
		FROM projects
		WHERE scheduler_frequency IS NOT NULL AND scheduler_frequency != ''`)
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "list scheduled projects", err)
	}
	return projects, nil
}

// UpdateLastNightlyRunAt stamps the scheduler's start time, not
// completion time, so a crash mid-run doesn't cause the project to be
// picked up again before its cadence window elapses (§4.7 step 6).
func (s *ProjectStore) UpdateLastNightlyRunAt(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET last_nightly_run_at = $2 WHERE id = $1`, id, runAt)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "stamp last_nightly_run_at", err)
	}
	return nil
}

// PromptStore is the Postgres-backed PromptRepository.
type PromptStore struct{ db *sqlx.DB }

func NewPromptStore(db *sqlx.DB) *PromptStore { return &PromptStore{db: db} }

// promptRow carries the brand_mentions/domain_mentions columns, which
// models.Prompt tags db:"-" since a plain []string can't bind to a
// Postgres text[] column: pq.StringArray is the Scanner/Valuer lib/pq
// needs, so it is scanned here and copied onto the model afterward.
type promptRow struct {
	models.Prompt
	BrandMentions  pq.StringArray `db:"brand_mentions"`
	DomainMentions pq.StringArray `db:"domain_mentions"`
}

func (r promptRow) toModel() *models.Prompt {
	p := r.Prompt
	p.BrandMentions = []string(r.BrandMentions)
	p.DomainMentions = []string(r.DomainMentions)
	return &p
}

func (s *PromptStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var row promptRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, project_id, text, enabled, brand_mentions, domain_mentions
		FROM prompts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.New(apierr.InvalidRequest, "prompt not found")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "load prompt", err)
	}
	return row.toModel(), nil
}

func (s *PromptStore) ListEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	var rows []promptRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, project_id, text, enabled, brand_mentions, domain_mentions
		FROM prompts WHERE project_id = $1 AND enabled = true
		ORDER BY id`, projectID)
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "list enabled prompts", err)
	}
	prompts := make([]*models.Prompt, len(rows))
	for i, row := range rows {
		prompts[i] = row.toModel()
	}
	return prompts, nil
}

// TagStore is the Postgres-backed TagRepository.
type TagStore struct{ db *sqlx.DB }

func NewTagStore(db *sqlx.DB) *TagStore { return &TagStore{db: db} }

func (s *TagStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Tag, error) {
	var tags []*models.Tag
	err := s.db.SelectContext(ctx, &tags, `
		SELECT id, project_id, name, color
		FROM tags WHERE project_id = $1
		ORDER BY name`, projectID)
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "list project tags", err)
	}
	return tags, nil
}

const defaultTagColor = "#6b7280"

// Upsert matches name against a project's existing tags case-insensitively
// and reuses that row, or creates a new one with the default color.
func (s *TagStore) Upsert(ctx context.Context, projectID uuid.UUID, name string) (*models.Tag, error) {
	var existing models.Tag
	err := s.db.GetContext(ctx, &existing, `
		SELECT id, project_id, name, color FROM tags
		WHERE project_id = $1 AND lower(name) = lower($2)`, projectID, name)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "look up tag", err)
	}

	tag := &models.Tag{ID: uuid.New(), ProjectID: projectID, Name: name, Color: defaultTagColor}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO tags (id, project_id, name, color) VALUES (:id, :project_id, :name, :color)
		ON CONFLICT (project_id, name) DO NOTHING`, tag)
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "create tag", err)
	}
	return tag, nil
}

// JobBatchStore is the Postgres-backed JobBatchRepository, guarding its
// counter updates with a row lock so concurrent dispatcher workers can't
// race the §4.2 retry guard.
type JobBatchStore struct{ db *sqlx.DB }

func NewJobBatchStore(db *sqlx.DB) *JobBatchStore { return &JobBatchStore{db: db} }

// jobBatchRow mirrors promptRow's pq.StringArray binding for
// job_batches.brand_mentions/domain_mentions.
type jobBatchRow struct {
	models.JobBatch
	BrandMentions  pq.StringArray `db:"brand_mentions"`
	DomainMentions pq.StringArray `db:"domain_mentions"`
}

func newJobBatchRow(batch *models.JobBatch) jobBatchRow {
	return jobBatchRow{
		JobBatch:       *batch,
		BrandMentions:  pq.StringArray(batch.BrandMentions),
		DomainMentions: pq.StringArray(batch.DomainMentions),
	}
}

func (r jobBatchRow) toModel() *models.JobBatch {
	b := r.JobBatch
	b.BrandMentions = []string(r.BrandMentions)
	b.DomainMentions = []string(r.DomainMentions)
	return &b
}

func (s *JobBatchStore) Create(ctx context.Context, batch *models.JobBatch) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO job_batches (
			id, user_id, project_id, email, total_prompts, total_batches,
			completed_batches, failed_batches, status, openai_model, web_search,
			brand_mentions, domain_mentions, created_at
		) VALUES (
			:id, :user_id, :project_id, :email, :total_prompts, :total_batches,
			:completed_batches, :failed_batches, :status, :openai_model, :web_search,
			:brand_mentions, :domain_mentions, :created_at
		)`, newJobBatchRow(batch))
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "create job batch", err)
	}
	return nil
}

// GetByID loads a JobBatch without locking it, for the provider-B
// callback's read-only brand/domain mentions lookup (§4.4b step 4).
func (s *JobBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	var row jobBatchRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, project_id, email, total_prompts, total_batches,
			completed_batches, failed_batches, status, openai_model, web_search,
			brand_mentions, domain_mentions, created_at, completed_at, error_message
		FROM job_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.New(apierr.InvalidRequest, "job batch not found")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "load job batch", err)
	}
	return row.toModel(), nil
}

// LockJobBatch reads the job batch row FOR UPDATE within an implicit
// single-statement transaction scope, giving the caller a consistent
// snapshot to apply the retry guard against before writing it back.
func (s *JobBatchStore) LockJobBatch(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	var b models.JobBatch
	err := s.db.GetContext(ctx, &b, `
		SELECT id, user_id, project_id, email, total_prompts, total_batches,
			completed_batches, failed_batches, status, openai_model, web_search,
			created_at, completed_at, error_message
		FROM job_batches WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.New(apierr.InvalidRequest, "job batch not found")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "lock job batch", err)
	}
	return &b, nil
}

func (s *JobBatchStore) UpdateJobBatchCounters(ctx context.Context, batch *models.JobBatch) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE job_batches SET
			completed_batches = :completed_batches,
			failed_batches = :failed_batches,
			status = :status,
			completed_at = :completed_at,
			error_message = :error_message
		WHERE id = :id`, batch)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "update job batch counters", err)
	}
	return nil
}

// TrackingResultStore is the Postgres-backed TrackingResultRepository.
type TrackingResultStore struct{ db *sqlx.DB }

func NewTrackingResultStore(db *sqlx.DB) *TrackingResultStore {
	return &TrackingResultStore{db: db}
}

func (s *TrackingResultStore) Create(ctx context.Context, r *models.TrackingResult) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tracking_results (
			id, prompt_id, prompt_text, project_id, user_id, job_batch_id,
			batch_number, external_task_id, status, is_present, is_domain_present,
			sentiment, salience, response, mention_count, domain_mention_count,
			web_search, lcp, actionability, intent_classification,
			ai_search_volume, ai_volume_fetched_at, ai_volume_location_code,
			timestamp, source
		) VALUES (
			:id, :prompt_id, :prompt_text, :project_id, :user_id, :job_batch_id,
			:batch_number, :external_task_id, :status, :is_present, :is_domain_present,
			:sentiment, :salience, :response, :mention_count, :domain_mention_count,
			:web_search, :lcp, :actionability, :intent_classification,
			:ai_search_volume, :ai_volume_fetched_at, :ai_volume_location_code,
			:timestamp, :source
		)`, r)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "create tracking result", err)
	}
	return nil
}

func (s *TrackingResultStore) UpdateStatus(ctx context.Context, r *models.TrackingResult) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE tracking_results SET
			status = :status, external_task_id = :external_task_id,
			is_present = :is_present, is_domain_present = :is_domain_present,
			sentiment = :sentiment, salience = :salience, response = :response,
			mention_count = :mention_count, domain_mention_count = :domain_mention_count,
			lcp = :lcp, actionability = :actionability,
			intent_classification = :intent_classification,
			ai_search_volume = :ai_search_volume, ai_volume_fetched_at = :ai_volume_fetched_at,
			ai_volume_location_code = :ai_volume_location_code
		WHERE id = :id`, r)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "update tracking result", err)
	}
	return nil
}

func (s *TrackingResultStore) FindByExternalTaskID(ctx context.Context, externalTaskID string) (*models.TrackingResult, error) {
	var r models.TrackingResult
	err := s.db.GetContext(ctx, &r, `
		SELECT id, prompt_id, prompt_text, project_id, user_id, job_batch_id,
			batch_number, external_task_id, status, timestamp, source
		FROM tracking_results WHERE external_task_id = $1`, externalTaskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.New(apierr.InvalidRequest, "tracking result not found for external task id")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.DBUpdateFailed, "find tracking result by external task id", err)
	}
	return &r, nil
}

// UserKeyStore is the Postgres-backed UserKeyRepository, reading the
// externally-owned user_settings table.
type UserKeyStore struct{ db *sqlx.DB }

func NewUserKeyStore(db *sqlx.DB) *UserKeyStore { return &UserKeyStore{db: db} }

func (s *UserKeyStore) OpenAIKeyForUser(ctx context.Context, userID uuid.UUID) (string, string, error) {
	var row struct {
		OpenAIKey   string `db:"openai_api_key"`
		OpenAIModel string `db:"openai_model"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT openai_api_key, openai_model FROM user_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apierr.New(apierr.InvalidRequest, "no stored openai credentials for user")
	}
	if err != nil {
		return "", "", apierr.Wrap(apierr.DBUpdateFailed, "load user openai credentials", err)
	}
	if row.OpenAIKey == "" {
		return "", "", apierr.New(apierr.InvalidRequest, "user has no openai key configured")
	}
	return row.OpenAIKey, row.OpenAIModel, nil
}

// SubmissionStore is the Postgres-backed SubmissionRepository.
type SubmissionStore struct{ db *sqlx.DB }

func NewSubmissionStore(db *sqlx.DB) *SubmissionStore { return &SubmissionStore{db: db} }

// CreateSubmission inserts the JobBatch, its Prompt rows, and their
// initial pending TrackingResult rows inside a single transaction, so a
// failure partway through leaves no partial submission behind (§4.1
// step 6).
func (s *SubmissionStore) CreateSubmission(ctx context.Context, batch *models.JobBatch, prompts []*models.Prompt, results []*models.TrackingResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "begin submission transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO job_batches (
			id, user_id, project_id, email, total_prompts, total_batches,
			completed_batches, failed_batches, status, openai_model, web_search,
			brand_mentions, domain_mentions, created_at
		) VALUES (
			:id, :user_id, :project_id, :email, :total_prompts, :total_batches,
			:completed_batches, :failed_batches, :status, :openai_model, :web_search,
			:brand_mentions, :domain_mentions, :created_at
		)`, newJobBatchRow(batch)); err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "insert job batch", err)
	}

	for _, p := range prompts {
		row := promptRow{Prompt: *p, BrandMentions: pq.StringArray(p.BrandMentions), DomainMentions: pq.StringArray(p.DomainMentions)}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO prompts (id, project_id, text, enabled, brand_mentions, domain_mentions)
			VALUES (:id, :project_id, :text, :enabled, :brand_mentions, :domain_mentions)`, row); err != nil {
			return apierr.Wrap(apierr.DBUpdateFailed, "insert prompt", err)
		}
	}

	for _, r := range results {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO tracking_results (
				id, prompt_id, prompt_text, project_id, user_id, job_batch_id,
				batch_number, status, web_search, timestamp, source
			) VALUES (
				:id, :prompt_id, :prompt_text, :project_id, :user_id, :job_batch_id,
				:batch_number, :status, :web_search, :timestamp, :source
			)`, r); err != nil {
			return apierr.Wrap(apierr.DBUpdateFailed, "insert tracking result", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "commit submission transaction", err)
	}
	return nil
}

// TransitionProcessing moves a freshly-created JobBatch to processing
// (§4.1 step 7), after the durable rows exist but before any shard
// message has been published.
func (s *SubmissionStore) TransitionProcessing(ctx context.Context, jobBatchID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_batches SET status = $2 WHERE id = $1`, jobBatchID, models.JobBatchProcessing)
	if err != nil {
		return apierr.Wrap(apierr.DBUpdateFailed, "transition job batch to processing", err)
	}
	return nil
}

// ExistsForCorrelation backs the notifier's succeeded-email dedup guard
// (§4.8): true once any TrackingResult already carries this
// correlation id as its external_task_id.
func (s *TrackingResultStore) ExistsForCorrelation(ctx context.Context, correlationID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM tracking_results WHERE external_task_id = $1)`, correlationID)
	if err != nil {
		return false, apierr.Wrap(apierr.DBUpdateFailed, "check tracking result existence", err)
	}
	return exists, nil
}
