package providera

import (
	"context"
	"testing"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/enrichment"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/scrape"
)

type fakePollingProvider struct {
	snapshotID string
	polls      int
	readyAfter int
	pollErr    error
	results    []models.NormalizedResponse
	retrieveErr error
}

func (f *fakePollingProvider) Name() string      { return "fake" }
func (f *fakePollingProvider) MaxBatchSize() int { return 20 }

func (f *fakePollingProvider) Submit(ctx context.Context, reqs []scrape.SubmitRequest) (string, error) {
	return f.snapshotID, nil
}

func (f *fakePollingProvider) Poll(ctx context.Context, snapshotID string) (bool, error) {
	f.polls++
	if f.pollErr != nil {
		return false, f.pollErr
	}
	return f.polls >= f.readyAfter, nil
}

func (f *fakePollingProvider) Retrieve(ctx context.Context, snapshotID string, reqs []scrape.SubmitRequest) ([]models.NormalizedResponse, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.results, nil
}

type fakeTrackingResultStore struct {
	created []*models.TrackingResult
	updated []*models.TrackingResult
}

func (f *fakeTrackingResultStore) Create(ctx context.Context, result *models.TrackingResult) error {
	f.created = append(f.created, result)
	return nil
}

func (f *fakeTrackingResultStore) UpdateStatus(ctx context.Context, result *models.TrackingResult) error {
	f.updated = append(f.updated, result)
	return nil
}

func (f *fakeTrackingResultStore) FindByExternalTaskID(ctx context.Context, externalTaskID string) (*models.TrackingResult, error) {
	return nil, apierr.New(apierr.InvalidRequest, "not found")
}

func (f *fakeTrackingResultStore) ExistsForCorrelation(ctx context.Context, correlationID string) (bool, error) {
	return false, nil
}

func testEngine() *enrichment.Engine {
	return enrichment.NewEngine(func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) })
}

func TestProcessShardFulfillsMatchedPrompts(t *testing.T) {
	provider := &fakePollingProvider{
		snapshotID: "snap-1",
		readyAfter: 1,
		results: []models.NormalizedResponse{
			{AnswerText: "hello there", AttachedLinks: 0},
		},
	}
	tr := &fakeTrackingResultStore{}
	w := NewWorker(provider, tr, nil, testEngine(), nil, nil)

	msg := queue.ShardMessage{
		ProjectID:   "b7f7f000-0000-0000-0000-000000000001",
		UserID:      "b7f7f000-0000-0000-0000-000000000002",
		JobBatchID:  "",
		BatchNumber: 0,
		OpenAIModel: "gpt-4.1",
		Prompts: []queue.PromptPayload{
			{ID: "b7f7f000-0000-0000-0000-000000000003", Text: "tell me about acme", TrackingID: ""},
		},
	}

	if err := w.ProcessShard(context.Background(), msg); err != nil {
		t.Fatalf("ProcessShard: %v", err)
	}

	if len(tr.created) != 1 {
		t.Fatalf("expected one created row, got %d", len(tr.created))
	}
	if tr.created[0].Status != models.TrackingFulfilled {
		t.Errorf("expected fulfilled, got %v", tr.created[0].Status)
	}
}

func TestProcessShardMarksUnmatchedAsFailed(t *testing.T) {
	provider := &fakePollingProvider{
		snapshotID: "snap-2",
		readyAfter: 1,
		results:    []models.NormalizedResponse{{AnswerText: ""}},
	}
	tr := &fakeTrackingResultStore{}
	w := NewWorker(provider, tr, nil, testEngine(), nil, nil)

	msg := queue.ShardMessage{
		ProjectID: "b7f7f000-0000-0000-0000-000000000001",
		UserID:    "b7f7f000-0000-0000-0000-000000000002",
		Prompts: []queue.PromptPayload{
			{ID: "b7f7f000-0000-0000-0000-000000000003", Text: "no answer", TrackingID: ""},
		},
	}

	if err := w.ProcessShard(context.Background(), msg); err != nil {
		t.Fatalf("ProcessShard: %v", err)
	}

	if len(tr.created) != 1 || tr.created[0].Status != models.TrackingFailed {
		t.Errorf("expected one failed row for unmatched prompt")
	}
}

func TestProcessShardFailsWholeShardOnRetrieveError(t *testing.T) {
	provider := &fakePollingProvider{
		snapshotID:  "snap-3",
		readyAfter:  1,
		retrieveErr: apierr.New(apierr.UpstreamFailed, "no result found for prompt at position 0"),
	}
	tr := &fakeTrackingResultStore{}
	w := NewWorker(provider, tr, nil, testEngine(), nil, nil)

	msg := queue.ShardMessage{
		ProjectID: "b7f7f000-0000-0000-0000-000000000001",
		UserID:    "b7f7f000-0000-0000-0000-000000000002",
		Prompts: []queue.PromptPayload{
			{ID: "b7f7f000-0000-0000-0000-000000000003", Text: "prompt one", TrackingID: ""},
			{ID: "b7f7f000-0000-0000-0000-000000000004", Text: "prompt two", TrackingID: ""},
		},
	}

	if err := w.ProcessShard(context.Background(), msg); err != nil {
		t.Fatalf("ProcessShard: %v", err)
	}

	if len(tr.created) != 2 {
		t.Fatalf("expected both prompts written as failed, got %d", len(tr.created))
	}
	for _, r := range tr.created {
		if r.Status != models.TrackingFailed {
			t.Errorf("expected failed status, got %v", r.Status)
		}
	}
}

func TestPollUntilReadyHonorsContextCancellation(t *testing.T) {
	provider := &fakePollingProvider{readyAfter: 1 << 30}
	w := NewWorker(provider, &fakeTrackingResultStore{}, nil, testEngine(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := w.pollUntilReady(ctx, "snap-deadline")
	if err == nil {
		t.Fatalf("expected error when context is cancelled before readiness")
	}
}
