package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aivisible/prompt-pipeline/internal/config"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/providerhealth"
)

func TestShouldRunDailyCadence(t *testing.T) {
	now := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)

	recentRun := now.Add(-1 * time.Hour)
	if shouldRun(models.FrequencyDaily, &recentRun, now) {
		t.Errorf("expected daily cadence not due after only 1h")
	}

	oldRun := now.Add(-25 * time.Hour)
	if !shouldRun(models.FrequencyDaily, &oldRun, now) {
		t.Errorf("expected daily cadence due after 25h")
	}

	if !shouldRun(models.FrequencyDaily, nil, now) {
		t.Errorf("expected daily cadence due when never run")
	}
}

func TestShouldRunWeeklyAndMonthlyCadence(t *testing.T) {
	now := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)

	sixDays := now.Add(-6 * 24 * time.Hour)
	if shouldRun(models.FrequencyWeekly, &sixDays, now) {
		t.Errorf("expected weekly cadence not due after 6 days")
	}
	eightDays := now.Add(-8 * 24 * time.Hour)
	if !shouldRun(models.FrequencyWeekly, &eightDays, now) {
		t.Errorf("expected weekly cadence due after 8 days")
	}

	twentyNineDays := now.Add(-29 * 24 * time.Hour)
	if shouldRun(models.FrequencyMonthly, &twentyNineDays, now) {
		t.Errorf("expected monthly cadence not due after 29 days")
	}
	thirtyOneDays := now.Add(-31 * 24 * time.Hour)
	if !shouldRun(models.FrequencyMonthly, &thirtyOneDays, now) {
		t.Errorf("expected monthly cadence due after 31 days")
	}
}

func TestShouldRunSkipsUnknownFrequency(t *testing.T) {
	now := time.Now()
	if shouldRun(models.FrequencyNone, nil, now) {
		t.Errorf("expected no-frequency project to never run")
	}
}

func TestTopicForProviderMapsEachProvider(t *testing.T) {
	if got := topicForProvider(providerhealth.ProviderB); got != queue.TopicProviderB {
		t.Errorf("expected providerB topic, got %v", got)
	}
	if got := topicForProvider(providerhealth.ProviderA); got != queue.TopicProviderA {
		t.Errorf("expected providerA topic, got %v", got)
	}
}

type fakeProjects struct {
	projects []*models.Project
	stamped  map[uuid.UUID]time.Time
}

func (f *fakeProjects) ListScheduled(ctx context.Context) ([]*models.Project, error) {
	return f.projects, nil
}

func (f *fakeProjects) UpdateLastNightlyRunAt(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	if f.stamped == nil {
		f.stamped = map[uuid.UUID]time.Time{}
	}
	f.stamped[id] = runAt
	return nil
}

type fakePrompts struct{ prompts []*models.Prompt }

func (f *fakePrompts) ListEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	return f.prompts, nil
}

type fakeUserKeys struct{}

func (f *fakeUserKeys) OpenAIKeyForUser(ctx context.Context, userID uuid.UUID) (string, string, error) {
	return "sk-test", "gpt-4.1", nil
}

type fakeActiveProvider struct{}

func (f *fakeActiveProvider) GetActive(ctx context.Context) (providerhealth.ProviderName, bool) {
	return providerhealth.ProviderB, true
}

type fakePublisher struct{ published []queue.ShardMessage }

func (f *fakePublisher) Publish(ctx context.Context, topic queue.Topic, msg queue.ShardMessage) error {
	f.published = append(f.published, msg)
	return nil
}

func TestRunOnceSkipsWhenAlreadyRunning(t *testing.T) {
	projectID := uuid.New()
	projects := &fakeProjects{projects: []*models.Project{{ID: projectID, UserID: uuid.New(), SchedulerFrequency: models.FrequencyDaily}}}
	prompts := &fakePrompts{prompts: []*models.Prompt{{ID: uuid.New(), Text: "hi", Enabled: true}}}
	publisher := &fakePublisher{}

	s := New(config.SchedulerConfig{}, projects, prompts, &fakeUserKeys{},
		func(ctx context.Context, apiKey, model string) error { return nil },
		&fakeActiveProvider{}, publisher)

	s.running.Store(true)
	s.RunOnce(context.Background())

	if len(publisher.published) != 0 {
		t.Errorf("expected no publishes while already running, got %d", len(publisher.published))
	}
}

func TestRunOncePublishesForDueProjectAndStampsRunAt(t *testing.T) {
	projectID := uuid.New()
	projects := &fakeProjects{projects: []*models.Project{{ID: projectID, UserID: uuid.New(), SchedulerFrequency: models.FrequencyDaily}}}
	prompts := &fakePrompts{prompts: []*models.Prompt{{ID: uuid.New(), Text: "hi", Enabled: true}}}
	publisher := &fakePublisher{}

	s := New(config.SchedulerConfig{}, projects, prompts, &fakeUserKeys{},
		func(ctx context.Context, apiKey, model string) error { return nil },
		&fakeActiveProvider{}, publisher)

	s.RunOnce(context.Background())

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 shard published, got %d", len(publisher.published))
	}
	if !publisher.published[0].Nightly {
		t.Errorf("expected nightly=true on published shard")
	}
	if publisher.published[0].Email != nil {
		t.Errorf("expected nil email on nightly shard")
	}
	if _, ok := projects.stamped[projectID]; !ok {
		t.Errorf("expected last_nightly_run_at stamped for project")
	}
}
