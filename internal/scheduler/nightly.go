// Package scheduler implements the nightly re-run scheduler from §4.7:
// a singleton cron-driven task that fans eligible projects' prompts
// back into the dispatch queue on a daily/weekly/monthly cadence,
// bypassing the submission API entirely. Grounded on the teacher's
// workflows/scheduled_processor.go (CronTrigger + per-entity step loop)
// but driven by github.com/robfig/cron/v3 directly rather than
// Inngest's own cron trigger, since this process owns the singleton
// lock itself instead of relying on Inngest's function concurrency
// controls.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/aivisible/prompt-pipeline/internal/batch"
	"github.com/aivisible/prompt-pipeline/internal/config"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/providerhealth"
)

// ProjectLoader loads scheduler-eligible projects and stamps their
// cadence bookkeeping.
type ProjectLoader interface {
	ListScheduled(ctx context.Context) ([]*models.Project, error)
	UpdateLastNightlyRunAt(ctx context.Context, id uuid.UUID, runAt time.Time) error
}

// PromptLoader loads a project's enabled prompts.
type PromptLoader interface {
	ListEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error)
}

// UserKeyLoader resolves a project's owning user's OpenAI credentials.
type UserKeyLoader interface {
	OpenAIKeyForUser(ctx context.Context, userID uuid.UUID) (apiKey, model string, err error)
}

// KeyValidator validates an OpenAI key+model pair (§4.1 step 2).
type KeyValidator func(ctx context.Context, apiKey, model string) error

// ActiveProviderResolver resolves the active scraping provider (§4.3).
type ActiveProviderResolver interface {
	GetActive(ctx context.Context) (providerhealth.ProviderName, bool)
}

// Publisher fans a shard message out to a provider topic.
type Publisher interface {
	Publish(ctx context.Context, topic queue.Topic, msg queue.ShardMessage) error
}

// Scheduler runs the nightly re-run cron job under a singleton lock.
type Scheduler struct {
	cfg       config.SchedulerConfig
	projects  ProjectLoader
	prompts   PromptLoader
	userKeys  UserKeyLoader
	validate  KeyValidator
	providers ActiveProviderResolver
	publisher Publisher

	running atomic.Bool
	nowFunc func() time.Time
}

func New(
	cfg config.SchedulerConfig,
	projects ProjectLoader,
	prompts PromptLoader,
	userKeys UserKeyLoader,
	validate KeyValidator,
	providers ActiveProviderResolver,
	publisher Publisher,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		projects:  projects,
		prompts:   prompts,
		userKeys:  userKeys,
		validate:  validate,
		providers: providers,
		publisher: publisher,
		nowFunc:   time.Now,
	}
}

// Start registers the nightly job against a cron.Cron instance on the
// configured schedule and starts it running.
func (s *Scheduler) Start() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.cfg.CronExpression, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: register cron job: %w", err)
	}
	c.Start()
	return c, nil
}

// RunOnce executes one nightly pass, skipping entirely if a prior run
// is still in flight (§4.7's singleton `isRunning` lock).
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("scheduler: nightly run already in progress, skipping")
		return
	}
	defer s.running.Store(false)

	startedAt := s.nowFunc()

	activeProvider, ok := s.providers.GetActive(ctx)
	if !ok {
		log.Println("scheduler: no active provider, skipping nightly run")
		return
	}

	projects, err := s.projects.ListScheduled(ctx)
	if err != nil {
		log.Printf("scheduler: failed to list scheduled projects: %v", err)
		return
	}

	if s.cfg.TestingMode && s.cfg.TestProjectID != "" {
		projects = filterToTestProject(projects, s.cfg.TestProjectID)
	}

	for _, project := range projects {
		if !shouldRun(project.SchedulerFrequency, project.LastNightlyRunAt, startedAt) {
			continue
		}
		if err := s.processProject(ctx, project, activeProvider, startedAt); err != nil {
			log.Printf("scheduler: project %s failed: %v", project.ID, err)
		}
	}
}

func (s *Scheduler) processProject(ctx context.Context, project *models.Project, activeProvider providerhealth.ProviderName, startedAt time.Time) error {
	apiKey, model, err := s.userKeys.OpenAIKeyForUser(ctx, project.UserID)
	if err != nil {
		// Missing key: skip this user's projects silently, per §4.7 step 5.
		return nil
	}
	if err := s.validate(ctx, apiKey, model); err != nil {
		return nil
	}

	prompts, err := s.prompts.ListEnabledByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list enabled prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil
	}

	payloads := make([]queue.PromptPayload, len(prompts))
	for i, p := range prompts {
		payloads[i] = queue.PromptPayload{
			ID:             p.ID.String(),
			Text:           p.Text,
			TrackingID:     "",
			Geo:            p.Geo,
			BrandMentions:  p.BrandMentions,
			DomainMentions: p.DomainMentions,
		}
	}

	size := batch.Size(len(payloads))
	shards := batch.Shard(payloads, size)
	topic := topicForProvider(activeProvider)

	for i, shard := range shards {
		msg := queue.ShardMessage{
			OpenAIKey:    apiKey,
			OpenAIModel:  model,
			Email:        nil,
			ProjectID:    project.ID.String(),
			UserID:       project.UserID.String(),
			JobBatchID:   "",
			BatchNumber:  i,
			TotalBatches: len(shards),
			Prompts:      shard,
			Service:      string(activeProvider),
			Nightly:      true,
			WebSearch:    false,
		}
		if err := s.publisher.Publish(ctx, topic, msg); err != nil {
			log.Printf("scheduler: publish shard %d for project %s failed: %v", i, project.ID, err)
			continue
		}
	}

	return s.projects.UpdateLastNightlyRunAt(ctx, project.ID, startedAt)
}

func topicForProvider(provider providerhealth.ProviderName) queue.Topic {
	if provider == providerhealth.ProviderB {
		return queue.TopicProviderB
	}
	return queue.TopicProviderA
}

func filterToTestProject(projects []*models.Project, testProjectID string) []*models.Project {
	for _, p := range projects {
		if p.ID.String() == testProjectID {
			return []*models.Project{p}
		}
	}
	return nil
}

// shouldRun decides whether a project is due for its nightly re-run,
// per §4.7 step 4's cadence table.
func shouldRun(freq models.SchedulerFrequency, lastRun *time.Time, now time.Time) bool {
	var threshold time.Duration
	switch freq {
	case models.FrequencyDaily:
		threshold = 24 * time.Hour
	case models.FrequencyWeekly:
		threshold = 7 * 24 * time.Hour
	case models.FrequencyMonthly:
		threshold = 30 * 24 * time.Hour
	default:
		return false
	}
	if lastRun == nil {
		return true
	}
	return now.Sub(*lastRun) >= threshold
}
