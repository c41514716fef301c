package providerb

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/notify"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/scrape"
	"github.com/aivisible/prompt-pipeline/internal/store"
)

// rateControl is the 1s per-prompt spacing §4.4d requires of dispatcher
// B to avoid tripping the upstream's rate limiter.
const rateControl = 1 * time.Second

// Worker is dispatcher worker B (§4.4b steps 1-3): it submits one
// callback-style task per prompt in a shard, stamping the returned task
// id onto the prompt's TrackingResult for later correlation when the
// webhook in internal/api/callback.go fires. Grounded on the same
// workflows/org_processor.go step pipeline shape as providera.Worker,
// generalized to a per-prompt submit loop instead of a single
// whole-shard submit.
type Worker struct {
	client          *Client
	trackingResults store.TrackingResultRepository
	notifier        *notify.Notifier
	callbackBaseURL string
}

func NewWorker(client *Client, trackingResults store.TrackingResultRepository, notifier *notify.Notifier, callbackBaseURL string) *Worker {
	return &Worker{client: client, trackingResults: trackingResults, notifier: notifier, callbackBaseURL: callbackBaseURL}
}

// RegisterFunction registers the per-shard submission function against
// queue.TopicProviderB.
func (w *Worker) RegisterFunction(client inngestgo.Client) (inngestgo.ServableFunction, error) {
	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "dispatch-provider-b-shard", Name: "Dispatch Provider B Shard", Retries: inngestgo.IntPtr(3)},
		inngestgo.EventTrigger(string(queue.TopicProviderB), nil),
		func(ctx context.Context, input inngestgo.Input[queue.ShardMessage]) (any, error) {
			return nil, w.ProcessShard(ctx, input.Event.Data)
		},
	)
}

// ProcessShard runs §4.4b steps 1-3 against one shard message. A
// retryable submission error aborts the whole shard so Inngest
// redelivers it; a non-retryable error marks only that one prompt
// failed and the loop continues, per §4.4c's per-cause classification.
func (w *Worker) ProcessShard(ctx context.Context, msg queue.ShardMessage) error {
	projectID, err := uuid.Parse(msg.ProjectID)
	if err != nil {
		return apierr.Wrap(apierr.InvalidRequest, "shard message has invalid project_id", err)
	}
	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		return apierr.Wrap(apierr.InvalidRequest, "shard message has invalid user_id", err)
	}

	for i, p := range msg.Prompts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rateControl):
			}
		}

		country := ""
		if p.Geo != nil {
			country = p.Geo.Country
		}
		callbackURL := w.buildCallbackURL(userID, projectID, p.ID, msg.OpenAIModel, msg.Nightly)

		taskID, err := w.client.SubmitOne(ctx, scrape.SubmitRequest{
			Prompt:      p.Text,
			Country:     country,
			WebSearch:   msg.WebSearch,
			CallbackURL: callbackURL,
		})
		if err != nil {
			if apierr.Retryable(err) {
				return err
			}
			w.markFailed(ctx, p, projectID, userID, msg.Nightly)
			continue
		}

		if msg.Nightly {
			// Step 2: nightly jobs have no pre-existing row; the query
			// string on callbackURL is the only correlation token.
			continue
		}

		if err := w.stampProcessing(ctx, p, taskID); err != nil {
			log.Printf("providerb worker: failed to stamp task id for prompt %s: %v", p.ID, err)
		}
	}

	if msg.Email != nil && w.notifier != nil {
		if err := w.notifier.Send(ctx, notify.KindSubmitted, *msg.Email, msg.JobBatchID, notify.Vars{"batch_number": strconv.Itoa(msg.BatchNumber)}); err != nil {
			log.Printf("providerb worker: submitted email failed for batch %s: %v", msg.JobBatchID, err)
		}
	}

	return nil
}

func (w *Worker) buildCallbackURL(userID, projectID uuid.UUID, promptID, openaiModel string, nightly bool) string {
	q := url.Values{}
	q.Set("user_id", userID.String())
	q.Set("projectId", projectID.String())
	if promptID != "" {
		q.Set("promptId", promptID)
	}
	q.Set("openaiModel", openaiModel)
	if nightly {
		q.Set("isNightly", "true")
	}
	return fmt.Sprintf("%s?%s", w.callbackBaseURL, q.Encode())
}

func (w *Worker) stampProcessing(ctx context.Context, p queue.PromptPayload, taskID string) error {
	id, err := uuid.Parse(p.TrackingID)
	if err != nil {
		return apierr.Wrap(apierr.InvalidRequest, "prompt payload has invalid tracking_id", err)
	}
	result := &models.TrackingResult{
		ID:             id,
		Status:         models.TrackingProcessing,
		ExternalTaskID: &taskID,
	}
	return w.trackingResults.UpdateStatus(ctx, result)
}

func (w *Worker) markFailed(ctx context.Context, p queue.PromptPayload, projectID, userID uuid.UUID, nightly bool) {
	id, err := uuid.Parse(p.TrackingID)
	if err != nil {
		// Nightly submissions never had a row to begin with; nothing to
		// mark failed against.
		return
	}
	source := models.SourceProviderB
	if nightly {
		source = models.SourceProviderBNightly
	}
	result := &models.TrackingResult{
		ID:        id,
		ProjectID: projectID,
		UserID:    userID,
		Status:    models.TrackingFailed,
		Timestamp: time.Now(),
		Source:    source,
	}
	if err := w.trackingResults.UpdateStatus(ctx, result); err != nil {
		log.Printf("providerb worker: failed to mark prompt %s failed: %v", p.ID, err)
	}
}
