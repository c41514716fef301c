package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/cache"
	"github.com/aivisible/prompt-pipeline/internal/enrichment"
	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/scrape/providerb"
)

// callbackContext is the typed record the inbound webhook's query string
// is parsed into, per the REDESIGN FLAGS guidance: "treat the URL as an
// external interface and validate query parameters as a typed
// CallbackContext record; never parse more than once."
type callbackContext struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	PromptID    uuid.UUID
	OpenAIModel string
	IsNightly   bool
}

func parseCallbackContext(r *http.Request) (callbackContext, error) {
	q := r.URL.Query()
	userID, err := uuid.Parse(q.Get("user_id"))
	if err != nil {
		return callbackContext{}, apierr.New(apierr.InvalidRequest, "callback missing or invalid user_id")
	}
	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		return callbackContext{}, apierr.New(apierr.InvalidRequest, "callback missing or invalid projectId")
	}

	var promptID uuid.UUID
	if raw := q.Get("promptId"); raw != "" {
		promptID, err = uuid.Parse(raw)
		if err != nil {
			return callbackContext{}, apierr.New(apierr.InvalidRequest, "callback has invalid promptId")
		}
	}

	return callbackContext{
		UserID:      userID,
		ProjectID:   projectID,
		PromptID:    promptID,
		OpenAIModel: q.Get("openaiModel"),
		IsNightly:   q.Get("isNightly") == "true",
	}, nil
}

// handleCallback is the provider-B webhook (§4.4b steps 4-5, §6). It
// always acks with 200, including logical failures that were
// successfully recorded, reserving 4xx/5xx for truly unexpected faults.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	cbCtx, err := parseCallbackContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidRequest, "failed to read callback body", err))
		return
	}

	payload, err := providerb.ParseCallback(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.processCallback(ctx, cbCtx, payload); err != nil {
		if s.logger != nil {
			s.logger.Error("callback: processing failed", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) processCallback(ctx context.Context, cbCtx callbackContext, payload *providerb.CallbackPayload) error {
	taskID := payload.TaskID()

	if cbCtx.IsNightly {
		return s.processNightlyCallback(ctx, cbCtx, taskID, payload)
	}
	return s.processSubmittedCallback(ctx, taskID, payload)
}

// processSubmittedCallback handles a callback for a TrackingResult that
// was created at submission time and stamped with taskID when the task
// was dispatched.
func (s *Server) processSubmittedCallback(ctx context.Context, taskID string, payload *providerb.CallbackPayload) error {
	result, err := s.trackingResults.FindByExternalTaskID(ctx, taskID)
	if err != nil {
		return err
	}

	// Late-failure guard (§4.4b step 4): a callback arriving after the
	// row already reached fulfilled never downgrades it.
	if result.Status == models.TrackingFulfilled {
		return nil
	}

	if !payload.Succeeded() {
		result.Status = models.TrackingFailed
		if err := s.trackingResults.UpdateStatus(ctx, result); err != nil {
			return err
		}
		return s.recordShard(ctx, result, true)
	}

	brands, domains := s.loadSubmittedMentions(ctx, result)
	if err := s.enrichAndFulfill(ctx, result, payload.Normalize(), brands, domains); err != nil {
		return err
	}
	if err := s.trackingResults.UpdateStatus(ctx, result); err != nil {
		return err
	}
	return s.recordShard(ctx, result, false)
}

// loadSubmittedMentions recovers the brand/domain snapshot a submitted
// job was created with. That snapshot lives on the JobBatch row (§4.1
// step 6 persists it there), not on the TrackingResult itself. A lookup
// failure degrades to no presence matching rather than failing the
// callback outright, since the provider has already delivered its
// answer and there is no shard left to retry.
func (s *Server) loadSubmittedMentions(ctx context.Context, result *models.TrackingResult) (brands, domains []string) {
	if s.jobBatches == nil || result.JobBatchID == nil {
		return nil, nil
	}
	jb, err := s.jobBatches.GetByID(ctx, *result.JobBatchID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("callback: failed to load job batch for brand/domain mentions", zap.Error(err))
		}
		return nil, nil
	}
	return jb.BrandMentions, jb.DomainMentions
}

// processNightlyCallback handles a callback for a nightly re-run, which
// has no pre-existing TrackingResult — only the stamped query-string
// correlation. A failed nightly outcome is dropped entirely (§4.4b
// step 4: "nightly: do not create a row").
func (s *Server) processNightlyCallback(ctx context.Context, cbCtx callbackContext, taskID string, payload *providerb.CallbackPayload) error {
	if !payload.Succeeded() {
		return nil
	}

	prompt, err := s.prompts.GetByID(ctx, cbCtx.PromptID)
	if err != nil {
		return err
	}

	result := &models.TrackingResult{
		ID:             uuid.New(),
		PromptID:       prompt.ID,
		PromptText:     prompt.Text,
		ProjectID:      cbCtx.ProjectID,
		UserID:         cbCtx.UserID,
		ExternalTaskID: &taskID,
		Status:         models.TrackingProcessing,
		Timestamp:      time.Now(),
		Source:         models.SourceProviderBNightly,
	}
	if err := s.enrichAndFulfill(ctx, result, payload.Normalize(), prompt.BrandMentions, prompt.DomainMentions); err != nil {
		return err
	}
	return s.trackingResults.Create(ctx, result)
}

// enrichAndFulfill runs the enrichment engine against the normalized
// response and transitions result to fulfilled. It only mutates result
// in place; callers decide whether that's an insert or an update.
func (s *Server) enrichAndFulfill(ctx context.Context, result *models.TrackingResult, normalized models.NormalizedResponse, brands, domains []string) error {
	apiKey, model, err := s.userKeys.OpenAIKeyForUser(ctx, result.UserID)
	if err != nil {
		return err
	}

	var client llm.Client
	if c, err := llm.New(apiKey, model, s.cost); err == nil {
		client = c
	}

	enriched, err := s.engine.Enrich(ctx, normalized, result.PromptText, model, brands, domains, client)
	if err != nil {
		return err
	}

	isPresent := enriched.BrandPresence.AnyMatch
	isDomainPresent := enriched.DomainPresence.AnyMatch
	mentionCount := enriched.BrandPresence.Total
	domainMentionCount := enriched.DomainPresence.Total
	sentiment := enriched.Sentiment
	salience := enriched.Salience
	lcp := enriched.LCP
	actionability := enriched.Actionability
	intent := models.IntentClassification(enriched.Intent.Primary)

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
	result.Timestamp = time.Now()
	answer := enriched.SanitizedText
	result.Response = &answer

	s.warmHostnameCache(ctx, result.ProjectID, enriched.Citations, domains)
	return nil
}

// warmHostnameCache mirrors providera.Worker's per-citation cache warm,
// deduping citation hostnames seen across callback deliveries for the
// same project.
func (s *Server) warmHostnameCache(ctx context.Context, projectID uuid.UUID, citations []models.Citation, domains []string) {
	if s.hostnames == nil {
		return
	}
	projectKey := projectID.String()
	for _, c := range citations {
		if c.Domain == "" {
			continue
		}
		if _, ok := s.hostnames.Lookup(ctx, projectKey, c.Domain); ok {
			continue
		}
		entry := cache.Entry{
			Hostname:   c.Domain,
			Normalized: strings.ToLower(c.Domain),
			Matched:    enrichment.MatchesDomain(c.Domain, domains),
		}
		if err := s.hostnames.Put(ctx, projectKey, entry); err != nil && s.logger != nil {
			s.logger.Warn("callback: hostname cache put failed")
		}
	}
}

func (s *Server) recordShard(ctx context.Context, result *models.TrackingResult, failed bool) error {
	if s.batches == nil || result.JobBatchID == nil {
		return nil
	}
	return s.batches.RecordShard(ctx, *result.JobBatchID, result.BatchNumber, failed)
}
