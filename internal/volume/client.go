// Package volume implements the AI-search-volume trend client from §4.6,
// grounded on the teacher's BrightDataClient HTTP shape (trigger-style
// POST with a bearer-ish credential, JSON decode into a typed envelope)
// but adapted to DataForSEO's synchronous keyword-volume batch endpoint
// and its basic-auth login/password credential pair.
package volume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/models"
)

const maxPrompts = 50
const maxMonthlyTrends = 12

// Client looks up AI-search-volume trend data for batches of prompts.
type Client struct {
	login      string
	password   string
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client. baseURL is expected to be the provider's API
// root (e.g. "https://api.dataforseo.com/v3").
func New(login, password, baseURL string) *Client {
	return &Client{
		login:    login,
		password: password,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type volumeRequest struct {
	Keywords     []string `json:"keywords"`
	LocationCode string   `json:"location_code"`
	Language     string   `json:"language"`
}

type volumeItem struct {
	Keyword       string `json:"keyword"`
	SearchVolume  int    `json:"search_volume"`
	MonthlySearches []struct {
		Year         int `json:"year"`
		Month        int `json:"month"`
		SearchVolume int `json:"search_volume"`
	} `json:"monthly_searches"`
}

type volumeResponse struct {
	StatusCode int          `json:"status_code"`
	Items      []volumeItem `json:"items"`
}

// BatchVolumes looks up AI-search-volume data for prompts, returning one
// *models.VolumeData (or nil) per input prompt, index-aligned, per §4.6.
func (c *Client) BatchVolumes(ctx context.Context, prompts []string, locationCode string) ([]*models.VolumeData, error) {
	unique := dedupeLowercase(prompts, maxPrompts)

	body, err := json.Marshal(volumeRequest{
		Keywords:     unique,
		LocationCode: locationCode,
		Language:     "en",
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.InvalidRequest, "failed to marshal volume request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/keywords_data/search_volume", bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamUnavailable, "failed to build volume request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.login, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.New(apierr.RetryableUpstream, fmt.Sprintf("volume provider request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamFailed, "failed to read volume response body", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, apierr.New(apierr.AuthFailed, "volume provider rejected credentials")
	case http.StatusPaymentRequired:
		return nil, apierr.New(apierr.QuotaExceeded, "volume provider reports exhausted credits")
	case http.StatusTooManyRequests:
		return nil, apierr.New(apierr.RetryableUpstream, "volume provider rate-limited the request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Per §4.6 step 2: any other failure yields a null result per
		// prompt rather than a hard error.
		return nullResults(len(prompts)), nil
	}

	var parsed volumeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nullResults(len(prompts)), nil
	}

	return aggregate(prompts, parsed.Items), nil
}

func dedupeLowercase(prompts []string, cap int) []string {
	seen := make(map[string]bool, len(prompts))
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		lower := strings.ToLower(strings.TrimSpace(p))
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
		if len(out) >= cap {
			break
		}
	}
	return out
}

func nullResults(n int) []*models.VolumeData {
	return make([]*models.VolumeData, n)
}

// aggregate builds one VolumeData per input prompt by matching against
// provider items on lowercase keyword equality, per §4.6 step 3.
func aggregate(prompts []string, items []volumeItem) []*models.VolumeData {
	byKeyword := make(map[string][]volumeItem, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Keyword))
		byKeyword[key] = append(byKeyword[key], item)
	}

	out := make([]*models.VolumeData, len(prompts))
	for i, prompt := range prompts {
		key := strings.ToLower(strings.TrimSpace(prompt))
		matches, ok := byKeyword[key]
		if !ok {
			continue
		}
		out[i] = aggregateMatches(matches)
	}
	return out
}

func aggregateMatches(items []volumeItem) *models.VolumeData {
	type monthKey struct{ year, month int }
	sums := make(map[monthKey]int)

	current := 0
	for _, item := range items {
		current += item.SearchVolume
		for _, m := range item.MonthlySearches {
			sums[monthKey{m.Year, m.Month}] += m.SearchVolume
		}
	}

	trends := make([]models.MonthlyTrend, 0, len(sums))
	for k, v := range sums {
		trends = append(trends, models.MonthlyTrend{Year: k.year, Month: k.month, Volume: v})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Year != trends[j].Year {
			return trends[i].Year > trends[j].Year
		}
		return trends[i].Month > trends[j].Month
	})
	if len(trends) > maxMonthlyTrends {
		trends = trends[:maxMonthlyTrends]
	}

	average := 0.0
	peak := 0
	if len(trends) > 0 {
		sum := 0
		for _, t := range trends {
			sum += t.Volume
			if t.Volume > peak {
				peak = t.Volume
			}
		}
		average = float64(sum) / float64(len(trends))
	}

	return &models.VolumeData{
		CurrentVolume: current,
		AverageVolume: average,
		PeakVolume:    peak,
		MonthlyTrends: trends,
	}
}
