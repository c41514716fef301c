package providerb

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/queue"
)

func testPrompt(trackingID string) queue.PromptPayload {
	return queue.PromptPayload{ID: uuid.New().String(), Text: "tell me about acme", TrackingID: trackingID}
}

type fakeTrackingResults struct {
	updated []*models.TrackingResult
}

func (f *fakeTrackingResults) Create(ctx context.Context, r *models.TrackingResult) error { return nil }
func (f *fakeTrackingResults) UpdateStatus(ctx context.Context, r *models.TrackingResult) error {
	f.updated = append(f.updated, r)
	return nil
}
func (f *fakeTrackingResults) FindByExternalTaskID(ctx context.Context, id string) (*models.TrackingResult, error) {
	return nil, apierr.New(apierr.InvalidRequest, "not found")
}
func (f *fakeTrackingResults) ExistsForCorrelation(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func TestBuildCallbackURLCarriesCorrelationFields(t *testing.T) {
	w := NewWorker(New("key", "https://example.test"), &fakeTrackingResults{}, nil, "https://pipeline.test/api/dataforseo/callback")

	userID := uuid.MustParse("b7f7f000-0000-0000-0000-000000000002")
	projectID := uuid.MustParse("b7f7f000-0000-0000-0000-000000000001")

	got := w.buildCallbackURL(userID, projectID, "b7f7f000-0000-0000-0000-000000000003", "gpt-4.1", true)

	want := "https://pipeline.test/api/dataforseo/callback?isNightly=true&openaiModel=gpt-4.1&projectId=b7f7f000-0000-0000-0000-000000000001&promptId=b7f7f000-0000-0000-0000-000000000003&user_id=b7f7f000-0000-0000-0000-000000000002"
	if got != want {
		t.Errorf("buildCallbackURL = %q, want %q", got, want)
	}
}

func TestBuildCallbackURLOmitsIsNightlyForSubmittedJobs(t *testing.T) {
	w := NewWorker(New("key", "https://example.test"), &fakeTrackingResults{}, nil, "https://pipeline.test/cb")

	got := w.buildCallbackURL(uuid.New(), uuid.New(), "", "gpt-4.1", false)
	if got == "" {
		t.Fatalf("expected non-empty callback url")
	}
	if strings.Contains(got, "isNightly") {
		t.Errorf("callback url for a submitted job should not carry isNightly: %q", got)
	}
	if got[len(got)-1] == '&' {
		t.Errorf("callback url should not end in a dangling query separator: %q", got)
	}
}

func TestMarkFailedSkipsNightlyPromptsWithNoTrackingID(t *testing.T) {
	tr := &fakeTrackingResults{}
	w := NewWorker(New("key", "https://example.test"), tr, nil, "https://pipeline.test/cb")

	w.markFailed(context.Background(), testPrompt(""), uuid.New(), uuid.New(), true)

	if len(tr.updated) != 0 {
		t.Errorf("expected no update for a nightly prompt with no tracking id, got %d", len(tr.updated))
	}
}

func TestMarkFailedUpdatesSubmittedPrompt(t *testing.T) {
	tr := &fakeTrackingResults{}
	w := NewWorker(New("key", "https://example.test"), tr, nil, "https://pipeline.test/cb")

	trackingID := uuid.New().String()
	w.markFailed(context.Background(), testPrompt(trackingID), uuid.New(), uuid.New(), false)

	if len(tr.updated) != 1 || tr.updated[0].Status != models.TrackingFailed {
		t.Fatalf("expected one failed update, got %+v", tr.updated)
	}
}
