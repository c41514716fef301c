package providera

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/batch"
	"github.com/aivisible/prompt-pipeline/internal/cache"
	"github.com/aivisible/prompt-pipeline/internal/enrichment"
	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/scrape"
	"github.com/aivisible/prompt-pipeline/internal/store"
)

// pollInterval and pollDeadline implement §4.4a step 2 and the §9 open
// question's recommended disposition: the source has no wall-clock
// timeout on snapshot polling, so a hard cap is required; 30 minutes,
// surfaced as UpstreamFailed, is the decision recorded in DESIGN.md.
const (
	pollInterval = 30 * time.Second
	pollDeadline = 30 * time.Minute
)

// Worker is dispatcher worker A (§4.4a): it submits a shard to the
// polling provider, waits for the snapshot to complete, enriches each
// matched result, and drives the job-batch state machine. Grounded on
// the teacher's workflows/org_processor.go step.Run pipeline shape,
// generalized from a fixed question matrix to an arbitrary prompt shard.
type Worker struct {
	client          scrape.PollingProvider
	trackingResults store.TrackingResultRepository
	batches         *batch.StateMachine
	engine          *enrichment.Engine
	cost            llm.CostService
	hostnames       *cache.HostnameCache
}

// NewWorker constructs a Worker. client is typically a *Client, narrowed
// to scrape.PollingProvider so tests can substitute a fake. hostnames
// may be nil, in which case the per-citation cache warm is skipped.
func NewWorker(client scrape.PollingProvider, trackingResults store.TrackingResultRepository, batches *batch.StateMachine, engine *enrichment.Engine, cost llm.CostService, hostnames *cache.HostnameCache) *Worker {
	return &Worker{client: client, trackingResults: trackingResults, batches: batches, engine: engine, cost: cost, hostnames: hostnames}
}

// RegisterFunction registers the shard-processing Inngest function
// against queue.TopicProviderA, the topic the submission API and the
// nightly scheduler publish to when provider A is active (§4.3).
func (w *Worker) RegisterFunction(client inngestgo.Client) (inngestgo.ServableFunction, error) {
	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{
			ID:      "dispatch-provider-a-shard",
			Name:    "Dispatch Provider A Shard",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger(string(queue.TopicProviderA), nil),
		func(ctx context.Context, input inngestgo.Input[queue.ShardMessage]) (any, error) {
			return nil, w.ProcessShard(ctx, input.Event.Data)
		},
	)
}

// ProcessShard runs §4.4a steps 1-6 against one shard message.
func (w *Worker) ProcessShard(ctx context.Context, msg queue.ShardMessage) error {
	projectID, err := uuid.Parse(msg.ProjectID)
	if err != nil {
		return apierr.Wrap(apierr.InvalidRequest, "shard message has invalid project_id", err)
	}
	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		return apierr.Wrap(apierr.InvalidRequest, "shard message has invalid user_id", err)
	}
	var jobBatchID *uuid.UUID
	if msg.JobBatchID != "" {
		id, err := uuid.Parse(msg.JobBatchID)
		if err != nil {
			return apierr.Wrap(apierr.InvalidRequest, "shard message has invalid job_batch_id", err)
		}
		jobBatchID = &id
	}

	reqs := make([]scrape.SubmitRequest, len(msg.Prompts))
	for i, p := range msg.Prompts {
		country := ""
		if p.Geo != nil {
			country = p.Geo.Country
		}
		reqs[i] = scrape.SubmitRequest{Prompt: p.Text, Country: country, WebSearch: msg.WebSearch}
	}

	snapshotID, err := w.client.Submit(ctx, reqs)
	if err != nil {
		return w.failShard(ctx, msg, projectID, userID, jobBatchID)
	}

	if err := w.pollUntilReady(ctx, snapshotID); err != nil {
		return w.failShard(ctx, msg, projectID, userID, jobBatchID)
	}

	results, err := w.client.Retrieve(ctx, snapshotID, reqs)
	if err != nil {
		return w.failShard(ctx, msg, projectID, userID, jobBatchID)
	}

	failed := false
	for i, p := range msg.Prompts {
		result := &models.TrackingResult{
			ID:          resultID(p.TrackingID),
			PromptID:    parseOrNil(p.ID),
			PromptText:  p.Text,
			ProjectID:   projectID,
			UserID:      userID,
			JobBatchID:  jobBatchID,
			BatchNumber: msg.BatchNumber,
			WebSearch:   msg.WebSearch,
			Timestamp:   time.Now(),
			Source:      sourceFor(msg.Nightly),
		}

		normalized := results[i]
		if normalized.AnswerText == "" {
			result.Status = models.TrackingFailed
			if err := w.upsert(ctx, p.TrackingID, result); err != nil {
				log.Printf("providera worker: failed to persist unmatched prompt %s: %v", p.ID, err)
			}
			failed = true
			continue
		}

		if err := w.enrich(ctx, result, normalized, msg.OpenAIKey, msg.OpenAIModel, p.BrandMentions, p.DomainMentions, projectID); err != nil {
			log.Printf("providera worker: enrichment failed for prompt %s: %v", p.ID, err)
			result.Status = models.TrackingFailed
			failed = true
		}
		if err := w.upsert(ctx, p.TrackingID, result); err != nil {
			log.Printf("providera worker: failed to persist prompt %s: %v", p.ID, err)
		}
	}

	return w.recordShard(ctx, jobBatchID, msg.BatchNumber, failed)
}

// pollUntilReady polls the snapshot at pollInterval until it reports
// ready, fails, or pollDeadline elapses.
func (w *Worker) pollUntilReady(ctx context.Context, snapshotID string) error {
	deadline := time.Now().Add(pollDeadline)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ready, err := w.client.Poll(ctx, snapshotID)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return apierr.New(apierr.UpstreamFailed, fmt.Sprintf("snapshot %s did not complete within %s", snapshotID, pollDeadline))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// enrich builds a fresh per-message client from the OpenAI credentials
// already carried on the shard message (§4.1 step 8 / §4.7 step 5) and
// runs the enrichment engine.
func (w *Worker) enrich(ctx context.Context, result *models.TrackingResult, normalized models.NormalizedResponse, apiKey, model string, brands, domains []string, projectID uuid.UUID) error {
	var client llm.Client
	if c, err := llm.New(apiKey, model, w.cost); err == nil {
		client = c
	}

	enriched, err := w.engine.Enrich(ctx, normalized, result.PromptText, model, brands, domains, client)
	if err != nil {
		return err
	}

	w.warmHostnameCache(ctx, projectID, enriched.Citations, domains)

	isPresent := enriched.BrandPresence.AnyMatch
	isDomainPresent := enriched.DomainPresence.AnyMatch
	mentionCount := enriched.BrandPresence.Total
	domainMentionCount := enriched.DomainPresence.Total
	sentiment := enriched.Sentiment
	salience := enriched.Salience
	lcp := enriched.LCP
	actionability := enriched.Actionability
	intent := models.IntentClassification(enriched.Intent.Primary)
	answer := enriched.SanitizedText

	result.Status = models.TrackingFulfilled
	result.IsPresent = &isPresent
	result.IsDomainPresent = &isDomainPresent
	result.MentionCount = &mentionCount
	result.DomainMentionCount = &domainMentionCount
	result.Sentiment = &sentiment
	result.Salience = &salience
	result.LCP = &lcp
	result.Actionability = &actionability
	result.IntentClassification = &intent
	result.Citations = enriched.Citations
	result.WebSearch = normalized.WebSearch
	result.Response = &answer
	return nil
}

// warmHostnameCache records each citation hostname's domain-match
// verdict, skipping hostnames the cache already has an entry for. The
// nightly scheduler re-submits the same prompts night after night and
// tends to surface largely the same cited hostnames, so this trades a
// little extra write volume today for fewer recomputed regex matches on
// tomorrow's run.
func (w *Worker) warmHostnameCache(ctx context.Context, projectID uuid.UUID, citations []models.Citation, domains []string) {
	if w.hostnames == nil {
		return
	}
	projectKey := projectID.String()
	for _, c := range citations {
		if c.Domain == "" {
			continue
		}
		if _, ok := w.hostnames.Lookup(ctx, projectKey, c.Domain); ok {
			continue
		}
		entry := cache.Entry{
			Hostname:   c.Domain,
			Normalized: strings.ToLower(c.Domain),
			Matched:    enrichment.MatchesDomain(c.Domain, domains),
		}
		if err := w.hostnames.Put(ctx, projectKey, entry); err != nil {
			log.Printf("providera worker: hostname cache put failed for %s: %v", c.Domain, err)
		}
	}
}

// upsert creates a fresh row when the shard carries no pre-stamped
// TrackingID (the nightly path, per §4.7 step 5), or updates the
// existing row otherwise.
func (w *Worker) upsert(ctx context.Context, trackingID string, result *models.TrackingResult) error {
	if trackingID == "" {
		result.ID = uuid.New()
		return w.trackingResults.Create(ctx, result)
	}
	return w.trackingResults.UpdateStatus(ctx, result)
}

// failShard marks every prompt in the shard failed under the given
// reason and records one shard-failed outcome, per §4.4c's
// non-retryable disposition ("TrackingResults are forcibly transitioned
// to failed with the classified reason").
func (w *Worker) failShard(ctx context.Context, msg queue.ShardMessage, projectID, userID uuid.UUID, jobBatchID *uuid.UUID) error {
	for _, p := range msg.Prompts {
		result := &models.TrackingResult{
			ID:          resultID(p.TrackingID),
			PromptID:    parseOrNil(p.ID),
			PromptText:  p.Text,
			ProjectID:   projectID,
			UserID:      userID,
			JobBatchID:  jobBatchID,
			BatchNumber: msg.BatchNumber,
			Status:      models.TrackingFailed,
			Timestamp:   time.Now(),
			Source:      sourceFor(msg.Nightly),
		}
		if err := w.upsert(ctx, p.TrackingID, result); err != nil {
			log.Printf("providera worker: failed to persist shard failure for prompt %s: %v", p.ID, err)
		}
	}
	return w.recordShard(ctx, jobBatchID, msg.BatchNumber, true)
}

func (w *Worker) recordShard(ctx context.Context, jobBatchID *uuid.UUID, batchNumber int, failed bool) error {
	if w.batches == nil || jobBatchID == nil {
		return nil
	}
	return w.batches.RecordShard(ctx, *jobBatchID, batchNumber, failed)
}

func sourceFor(nightly bool) models.Source {
	if nightly {
		return models.SourceProviderANightly
	}
	return models.SourceProviderA
}

func resultID(trackingID string) uuid.UUID {
	id, err := uuid.Parse(trackingID)
	if err != nil {
		return uuid.New()
	}
	return id
}

func parseOrNil(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
