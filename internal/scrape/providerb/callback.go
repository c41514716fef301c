package providerb

import (
	"encoding/json"
	"strings"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
	"github.com/aivisible/prompt-pipeline/internal/models"
)

// CallbackPayload is the provider-defined webhook body shape from §6:
// "tasks[0].{id, status_code, result[0].{markdown, items, sources},
// data.location_name}". Only the fields the pipeline actually consumes
// are modeled; everything else is accepted and ignored.
type CallbackPayload struct {
	Tasks []struct {
		ID         string `json:"id"`
		StatusCode int    `json:"status_code"`
		Result     []struct {
			Markdown string `json:"markdown"`
			Items    []struct {
				Products      []json.RawMessage `json:"products"`
				Images        []string          `json:"images"`
				LocalBusiness []json.RawMessage `json:"local_business"`
			} `json:"items"`
			Sources []struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"sources"`
		} `json:"result"`
		Data struct {
			LocationName string `json:"location_name"`
		} `json:"data"`
	} `json:"tasks"`
}

// statusCodeSuccess is the provider's "completed with results" sentinel
// from §4.4b step 4.
const statusCodeSuccess = 20000

// ParseCallback decodes the raw webhook body into a CallbackPayload.
func ParseCallback(body []byte) (*CallbackPayload, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apierr.Wrap(apierr.InvalidRequest, "failed to decode callback payload", err)
	}
	if len(payload.Tasks) == 0 {
		return nil, apierr.New(apierr.InvalidRequest, "callback payload has no tasks")
	}
	return &payload, nil
}

// TaskID returns the correlating task id carried by the callback's first
// task entry.
func (p *CallbackPayload) TaskID() string {
	if len(p.Tasks) == 0 {
		return ""
	}
	return p.Tasks[0].ID
}

// Succeeded reports whether the task completed with results, per §4.4b
// step 4's status_code==20000 contract.
func (p *CallbackPayload) Succeeded() bool {
	return len(p.Tasks) > 0 && p.Tasks[0].StatusCode == statusCodeSuccess
}

// Normalize converts a successful callback's task into the
// provider-agnostic response envelope the enrichment engine consumes.
func (p *CallbackPayload) Normalize() models.NormalizedResponse {
	if len(p.Tasks) == 0 || len(p.Tasks[0].Result) == 0 {
		return models.NormalizedResponse{}
	}

	task := p.Tasks[0]
	r := task.Result[0]

	citations := make([]models.Citation, 0, len(r.Sources))
	for _, s := range r.Sources {
		citations = append(citations, models.Citation{Title: s.Title, URL: s.URL})
	}

	hasProducts, hasImages, hasLocalBiz := false, false, false
	productCount, imageCount, localBizCount := 0, 0, 0
	for _, item := range r.Items {
		if len(item.Products) > 0 {
			hasProducts = true
			productCount += len(item.Products)
		}
		if len(item.Images) > 0 {
			hasImages = true
			imageCount += len(item.Images)
		}
		if len(item.LocalBusiness) > 0 {
			hasLocalBiz = true
			localBizCount += len(item.LocalBusiness)
		}
	}

	return models.NormalizedResponse{
		AnswerText:    strings.TrimSpace(r.Markdown),
		RawMarkdown:   r.Markdown,
		Citations:     citations,
		HasProducts:   hasProducts,
		ProductCount:  productCount,
		HasImages:     hasImages,
		ImageCount:    imageCount,
		HasLocalBiz:   hasLocalBiz,
		LocalBizCount: localBizCount,
		AttachedLinks: len(citations),
		HasSources:    len(citations) > 0,
		// Scenario 2 (§8): a response is recorded web_search=true
		// whenever it carries sources, regardless of the inbound
		// websearch flag on the submission.
		WebSearch: len(citations) > 0,
	}
}
