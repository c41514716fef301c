// Package providerb implements the callback/webhook submission provider
// used by dispatcher worker B (§4.4b). Adapted from the teacher's
// services/scrapeless_provider.go: same actor/input/webhook request
// envelope and x-api-token header, generalized to accept any postback
// URL rather than polling for a result inline (the callback is delivered
// out-of-band to internal/api's webhook handler instead).
package providerb

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
	"github.com/aivisible/prompt-pipeline/internal/retry"
	"github.com/aivisible/prompt-pipeline/internal/scrape"
)

// Client submits single-prompt scrape tasks with a webhook callback URL.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client. baseURL is expected to be the scraper API
// root (e.g. "https://api.scrapeless.com/api/v2/scraper").
func New(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

func (c *Client) Name() string { return "providerB" }

type webhook struct {
	URL string `json:"url"`
}

type createInput struct {
	Prompt    string `json:"prompt"`
	Country   string `json:"country"`
	WebSearch bool   `json:"web_search,omitempty"`
}

type createRequest struct {
	Actor   string       `json:"actor"`
	Input   createInput  `json:"input"`
	Webhook *webhook     `json:"webhook,omitempty"`
}

type taskEnvelope struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitOne creates a callback-style scrape task and returns its task
// id, which the caller stamps onto the pending TrackingResult for later
// correlation when the webhook fires (§4.4b step 2).
func (c *Client) SubmitOne(ctx context.Context, req scrape.SubmitRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", apierr.New(apierr.AuthFailed, "provider B API key is not configured")
	}

	body, err := json.Marshal(createRequest{
		Actor: "scraper.chatgpt",
		Input: createInput{
			Prompt:    req.Prompt,
			Country:   req.Country,
			WebSearch: req.WebSearch,
		},
		Webhook: &webhook{URL: req.CallbackURL},
	})
	if err != nil {
		return "", apierr.Wrap(apierr.InvalidRequest, "failed to marshal task request", err)
	}

	var taskID string
	rateLimited := false
	err = retry.Policy(ctx, func() error {
		respBody, status, doErr := c.doRequest(ctx, http.MethodPost, c.baseURL+"/request", body)
		if doErr != nil {
			return doErr
		}
		if status == http.StatusTooManyRequests {
			rateLimited = true
			return apierr.New(apierr.RetryableUpstream, "provider B rate-limited task creation")
		}

		var env taskEnvelope
		if jsonErr := json.Unmarshal(respBody, &env); jsonErr != nil {
			return apierr.Wrap(apierr.UpstreamFailed, "failed to decode task creation response", jsonErr)
		}
		if strings.TrimSpace(env.TaskID) == "" {
			return apierr.New(apierr.UpstreamFailed, "task creation response missing task_id")
		}
		taskID = env.TaskID
		return nil
	}, rateLimited)
	if err != nil {
		return "", err
	}

	return taskID, nil
}

func (c *Client) doRequest(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.UpstreamUnavailable, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, apierr.New(apierr.RetryableUpstream, fmt.Sprintf("provider B request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierr.Wrap(apierr.UpstreamFailed, "failed to read response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return respBody, resp.StatusCode, apierr.New(apierr.RetryableUpstream, fmt.Sprintf("provider B returned status %d", resp.StatusCode))
	}
	return respBody, resp.StatusCode, apierr.New(apierr.UpstreamFailed, fmt.Sprintf("provider B returned status %d", resp.StatusCode))
}
