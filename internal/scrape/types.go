// Package scrape defines the interfaces of the two scraping-provider
// clients (a polling provider and a callback/webhook provider), which
// live in the providera and providerb subpackages; the health controller
// that picks between them is internal/providerhealth. Both providers convert their own wire shape
// into models.NormalizedResponse so the enrichment engine never needs to
// know which provider produced a result.
package scrape

import (
	"context"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

// SubmitRequest is one prompt's worth of scrape work.
type SubmitRequest struct {
	Prompt      string
	Country     string
	WebSearch   bool
	CallbackURL string // set only for callback-style providers
}

// PollingProvider submits a batch of prompts, polls until the batch
// completes, then retrieves and normalizes the results — the shape of
// §4.4a's polling dispatcher (Provider A).
type PollingProvider interface {
	Name() string
	MaxBatchSize() int
	Submit(ctx context.Context, reqs []SubmitRequest) (snapshotID string, err error)
	Poll(ctx context.Context, snapshotID string) (ready bool, err error)
	Retrieve(ctx context.Context, snapshotID string, reqs []SubmitRequest) ([]models.NormalizedResponse, error)
}

// CallbackProvider submits one task at a time and carries a postback URL
// for asynchronous delivery — the shape of §4.4b's callback dispatcher
// (Provider B). The webhook payload itself is normalized by the HTTP
// callback handler, not by this interface.
type CallbackProvider interface {
	Name() string
	SubmitOne(ctx context.Context, req SubmitRequest) (externalTaskID string, err error)
}
