// Package providera implements the trigger/progress/snapshot polling
// provider used by dispatcher worker A (§4.4a). Adapted directly from
// the teacher's internal/providers/common/brightdata_client.go and
// internal/providers/chatgpt/*: same trigger/progress/snapshot endpoint
// shape, same Bearer auth, same long-timeout HTTP client for async
// operations — generalized from a single ChatGPT-scraper actor to any
// dataset-id-addressed polling provider.
package providera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/scrape"
)

const maxBatchSize = 20

// Client submits, polls, and retrieves batched prompt jobs against a
// dataset-trigger-style provider API (the teacher's BrightData shape).
type Client struct {
	apiKey     string
	baseURL    string
	datasetID  string
	httpClient *http.Client
}

// New constructs a Client. baseURL is expected to be the dataset API
// root (e.g. "https://api.brightdata.com/datasets/v3").
func New(apiKey, baseURL, datasetID string) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		datasetID: datasetID,
		httpClient: &http.Client{
			Timeout: 20 * time.Minute,
		},
	}
}

func (c *Client) Name() string      { return "providerA" }
func (c *Client) MaxBatchSize() int { return maxBatchSize }

type input struct {
	URL       string `json:"url"`
	Prompt    string `json:"prompt"`
	Country   string `json:"country"`
	WebSearch bool   `json:"web_search"`
	Index     int    `json:"index"`
}

type triggerRequest struct {
	Input []input `json:"input"`
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type progressResponse struct {
	Status string `json:"status"`
}

type inputEcho struct {
	Index int `json:"index"`
}

type result struct {
	URL                string      `json:"url"`
	Prompt             string      `json:"prompt"`
	Citations          interface{} `json:"citations"`
	AnswerTextMarkdown string      `json:"answer_text_markdown"`
	WebSearchTriggered bool        `json:"web_search_triggered"`
	Index              int         `json:"index"`
	Error              string      `json:"error,omitempty"`
	Input              *inputEcho  `json:"input,omitempty"`
}

// Submit triggers a dataset batch job for the given prompts and returns
// the snapshot id used to poll and retrieve results.
func (c *Client) Submit(ctx context.Context, reqs []scrape.SubmitRequest) (string, error) {
	if len(reqs) > maxBatchSize {
		return "", apierr.New(apierr.InvalidRequest, fmt.Sprintf("batch size %d exceeds maximum of %d", len(reqs), maxBatchSize))
	}

	inputs := make([]input, len(reqs))
	for i, r := range reqs {
		inputs[i] = input{
			URL:       "https://chatgpt.com/",
			Prompt:    r.Prompt,
			Country:   r.Country,
			WebSearch: r.WebSearch,
			Index:     i + 1,
		}
	}

	body, err := json.Marshal(triggerRequest{Input: inputs})
	if err != nil {
		return "", apierr.Wrap(apierr.InvalidRequest, "failed to marshal trigger payload", err)
	}

	url := fmt.Sprintf("%s/trigger?dataset_id=%s&include_errors=true", c.baseURL, c.datasetID)
	resp, err := c.doJSON(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}

	var trig triggerResponse
	if err := json.Unmarshal(resp, &trig); err != nil {
		return "", apierr.Wrap(apierr.UpstreamFailed, "failed to decode trigger response", err)
	}
	return trig.SnapshotID, nil
}

// Poll checks whether the batch has finished building.
func (c *Client) Poll(ctx context.Context, snapshotID string) (bool, error) {
	url := fmt.Sprintf("%s/progress/%s", c.baseURL, snapshotID)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	var p progressResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return false, apierr.Wrap(apierr.UpstreamFailed, "failed to decode progress response", err)
	}

	switch p.Status {
	case "ready":
		return true, nil
	case "failed":
		return false, apierr.New(apierr.UpstreamFailed, "provider reported batch job as failed")
	default:
		return false, nil
	}
}

// Retrieve fetches the completed snapshot and matches each result back
// to its original request by index, falling back to prompt-text equality
// when indices are missing or duplicated — the same two-tier matching
// strategy as the teacher's matchAndConvertResults.
func (c *Client) Retrieve(ctx context.Context, snapshotID string, reqs []scrape.SubmitRequest) ([]models.NormalizedResponse, error) {
	url := fmt.Sprintf("%s/snapshot/%s?format=json", c.baseURL, snapshotID)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var results []result
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, apierr.Wrap(apierr.UpstreamFailed, "failed to decode snapshot results", err)
	}
	if len(results) == 0 {
		return nil, apierr.New(apierr.UpstreamEmpty, "snapshot returned zero results")
	}

	return matchResults(results, reqs)
}

// FetchSnapshotEntry is the debug passthrough behind GET
// /snapshot-data/{snapshotId}?prompt=… (§6): it fetches the raw snapshot
// and returns the single entry whose prompt text matches, without
// requiring the caller to supply the original shard's request list.
func (c *Client) FetchSnapshotEntry(ctx context.Context, snapshotID, prompt string) (*models.NormalizedResponse, bool, error) {
	url := fmt.Sprintf("%s/snapshot/%s?format=json", c.baseURL, snapshotID)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	var results []result
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, false, apierr.Wrap(apierr.UpstreamFailed, "failed to decode snapshot results", err)
	}

	for i := range results {
		if results[i].Prompt == prompt {
			normalized := normalize(&results[i])
			return &normalized, true, nil
		}
	}
	return nil, false, nil
}

func matchResults(results []result, reqs []scrape.SubmitRequest) ([]models.NormalizedResponse, error) {
	byIndex := make(map[int]*result, len(results))
	validIndices := true
	for i := range results {
		idx := results[i].Index
		if idx == 0 && results[i].Input != nil {
			idx = results[i].Input.Index
		}
		if idx < 1 || idx > len(reqs) {
			validIndices = false
			break
		}
		if _, exists := byIndex[idx]; exists {
			validIndices = false
			break
		}
		byIndex[idx] = &results[i]
	}
	if validIndices && len(byIndex) != len(reqs) {
		validIndices = false
	}

	out := make([]models.NormalizedResponse, len(reqs))

	if validIndices {
		for i := range reqs {
			r := byIndex[i+1]
			out[i] = normalize(r)
		}
		return out, nil
	}

	byPrompt := make(map[string]*result, len(results))
	for i := range results {
		if results[i].Prompt == "" {
			continue
		}
		byPrompt[results[i].Prompt] = &results[i]
	}
	for i, req := range reqs {
		r, ok := byPrompt[req.Prompt]
		if !ok {
			return nil, apierr.New(apierr.UpstreamFailed, fmt.Sprintf("no result found for prompt at position %d", i))
		}
		out[i] = normalize(r)
	}
	return out, nil
}

func normalize(r *result) models.NormalizedResponse {
	if r == nil || r.Error != "" || strings.TrimSpace(r.AnswerTextMarkdown) == "" {
		return models.NormalizedResponse{}
	}

	citations := extractCitations(r.Citations)

	return models.NormalizedResponse{
		AnswerText:    r.AnswerTextMarkdown,
		RawMarkdown:   r.AnswerTextMarkdown,
		Citations:     citations,
		WebSearch:     r.WebSearchTriggered,
		AttachedLinks: len(citations),
		HasSources:    len(citations) > 0,
	}
}

// extractCitations tolerates the provider's loosely-typed citations
// field, which may arrive as a list of strings (bare URLs) or a list of
// {title,url} objects.
func extractCitations(raw interface{}) []models.Citation {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	citations := make([]models.Citation, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			citations = append(citations, models.Citation{URL: v})
		case map[string]interface{}:
			c := models.Citation{}
			if title, ok := v["title"].(string); ok {
				c.Title = title
			}
			if u, ok := v["url"].(string); ok {
				c.URL = u
			}
			if d, ok := v["domain"].(string); ok {
				c.Domain = d
			}
			citations = append(citations, c)
		}
	}
	return citations
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamUnavailable, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.RetryableUpstream, "provider request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamFailed, "failed to read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apierr.New(apierr.RetryableUpstream, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	default:
		return nil, apierr.New(apierr.UpstreamFailed, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
}
