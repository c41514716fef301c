package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/batch"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/providerhealth"
	"github.com/aivisible/prompt-pipeline/internal/queue"
)

// EnqueueRequest is the POST /enqueue body contract (§4.1).
type EnqueueRequest struct {
	Project        string           `json:"project"`
	User           string           `json:"user"`
	Email          string           `json:"email"`
	Prompts        []string         `json:"prompts"`
	BrandMentions  []string         `json:"brandMentions"`
	DomainMentions []string         `json:"domainMentions"`
	Geo            *models.Location `json:"geo"`
	OpenAIKey      string           `json:"openaiKey"`
	OpenAIModel    string           `json:"openaiModel"`
	WebSearch      bool             `json:"webSearch"`
	Tags           []string         `json:"tags"`
}

// EnqueueResponse is the body returned on successful enqueue.
type EnqueueResponse struct {
	JobBatchID   string `json:"jobBatchId"`
	TotalPrompts int    `json:"totalPrompts"`
	TotalBatches int    `json:"totalBatches"`
	Service      string `json:"service"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.InvalidRequest, "malformed request body"))
		return
	}

	resp, err := s.enqueue(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// enqueue runs the 9-step algorithm from §4.1.
func (s *Server) enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResponse, error) {
	// Step 1: required fields.
	projectID, userID, err := parseIDs(req.Project, req.User)
	if err != nil {
		return nil, err
	}
	if len(req.Prompts) == 0 {
		return nil, apierr.New(apierr.InvalidRequest, "at least one prompt is required")
	}
	if strings.TrimSpace(req.OpenAIKey) == "" {
		return nil, apierr.New(apierr.InvalidRequest, "openaiKey is required")
	}

	// Step 2: key + model validation.
	if err := s.validateKey(ctx, req.OpenAIKey, req.OpenAIModel); err != nil {
		return nil, err
	}

	// Step 3: active provider.
	activeProvider, ok := s.providers.GetActive(ctx)
	if !ok {
		return nil, apierr.New(apierr.AllProvidersDown, "no scraping provider is currently healthy")
	}

	// Step 4: tag upsert.
	for _, name := range req.Tags {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := s.tags.Upsert(ctx, projectID, name); err != nil {
			return nil, err
		}
	}

	// Step 5: batch size.
	size := batch.Size(len(req.Prompts))
	totalBatches := batch.Count(len(req.Prompts), size)

	// Step 6: build and transactionally insert JobBatch + Prompt + TrackingResult rows.
	now := time.Now()
	jobBatchID := uuid.New()
	var email *string
	if strings.TrimSpace(req.Email) != "" {
		email = &req.Email
	}

	jobBatch := &models.JobBatch{
		ID:             jobBatchID,
		UserID:         userID,
		ProjectID:      projectID,
		Email:          email,
		TotalPrompts:   len(req.Prompts),
		TotalBatches:   totalBatches,
		Status:         models.JobBatchPending,
		OpenAIKey:      req.OpenAIKey,
		OpenAIModel:    req.OpenAIModel,
		WebSearch:      req.WebSearch,
		Geo:            req.Geo,
		BrandMentions:  req.BrandMentions,
		DomainMentions: req.DomainMentions,
		Tags:           req.Tags,
		CreatedAt:      now,
	}

	source := sourceForProvider(activeProvider)
	prompts := make([]*models.Prompt, len(req.Prompts))
	results := make([]*models.TrackingResult, len(req.Prompts))
	for i, text := range req.Prompts {
		prompt := &models.Prompt{
			ID:             uuid.New(),
			ProjectID:      projectID,
			Text:           text,
			Enabled:        true,
			BrandMentions:  req.BrandMentions,
			DomainMentions: req.DomainMentions,
			Geo:            req.Geo,
		}
		prompts[i] = prompt
		results[i] = &models.TrackingResult{
			ID:          uuid.New(),
			PromptID:    prompt.ID,
			PromptText:  text,
			ProjectID:   projectID,
			UserID:      userID,
			JobBatchID:  &jobBatchID,
			BatchNumber: i / size,
			Status:      models.TrackingPending,
			WebSearch:   req.WebSearch,
			Timestamp:   now,
			Source:      source,
		}
	}

	if err := s.submissions.CreateSubmission(ctx, jobBatch, prompts, results); err != nil {
		return nil, err
	}

	// Step 7: transition to processing.
	if err := s.submissions.TransitionProcessing(ctx, jobBatchID); err != nil {
		return nil, err
	}

	// Step 8: fan out one message per shard, best-effort.
	topic := topicForProvider(activeProvider)
	resultShards := batch.Shard(results, size)
	for i, shard := range resultShards {
		payloads := make([]queue.PromptPayload, len(shard))
		for j, result := range shard {
			prompt := prompts[i*size+j]
			payloads[j] = queue.PromptPayload{
				ID:             prompt.ID.String(),
				Text:           prompt.Text,
				TrackingID:     result.ID.String(),
				Geo:            req.Geo,
				BrandMentions:  req.BrandMentions,
				DomainMentions: req.DomainMentions,
			}
		}
		msg := queue.ShardMessage{
			OpenAIKey:    req.OpenAIKey,
			OpenAIModel:  req.OpenAIModel,
			Email:        email,
			ProjectID:    projectID.String(),
			UserID:       userID.String(),
			JobBatchID:   jobBatchID.String(),
			BatchNumber:  i,
			TotalBatches: totalBatches,
			Prompts:      payloads,
			Service:      string(activeProvider),
			Nightly:      false,
			WebSearch:    req.WebSearch,
		}
		if err := s.publisher.Publish(ctx, topic, msg); err != nil {
			if s.logger != nil {
				s.logger.Warn("enqueue: shard publish failed, shard left pending",
					zap.String("job_batch_id", jobBatchID.String()), zap.Int("batch_number", i))
			}
			continue
		}
	}

	// Step 9: success.
	return &EnqueueResponse{
		JobBatchID:   jobBatchID.String(),
		TotalPrompts: len(req.Prompts),
		TotalBatches: totalBatches,
		Service:      string(activeProvider),
	}, nil
}

func parseIDs(projectRaw, userRaw string) (uuid.UUID, uuid.UUID, error) {
	if strings.TrimSpace(projectRaw) == "" || strings.TrimSpace(userRaw) == "" {
		return uuid.UUID{}, uuid.UUID{}, apierr.New(apierr.InvalidRequest, "project and user are required")
	}
	projectID, err := uuid.Parse(projectRaw)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, apierr.New(apierr.InvalidRequest, "project must be a valid id")
	}
	userID, err := uuid.Parse(userRaw)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, apierr.New(apierr.InvalidRequest, "user must be a valid id")
	}
	return projectID, userID, nil
}

func sourceForProvider(provider providerhealth.ProviderName) models.Source {
	if provider == providerhealth.ProviderB {
		return models.SourceProviderB
	}
	return models.SourceProviderA
}

func topicForProvider(provider providerhealth.ProviderName) queue.Topic {
	if provider == providerhealth.ProviderB {
		return queue.TopicProviderB
	}
	return queue.TopicProviderA
}
