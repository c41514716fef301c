// Package notify implements the transactional-email notifier from §4.8.
// It is grounded on the teacher's workflows/slack_alerts.go shape — a
// small stateless client wrapping a single outbound HTTP-based
// notification call — generalized from a Slack webhook post to a
// sendgrid-go templated send, and on the dedup/guarantee rules the
// teacher's send_worker reference implements around suppression checks
// (one send per shard, no silent re-sends).
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
)

// Kind is the class of transactional email the pipeline can send.
type Kind string

const (
	KindSubmitted Kind = "submitted"
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
)

// ResultChecker answers whether a shard's correlation id already has a
// recorded TrackingResult, used to dedupe "succeeded" emails against
// callback-retry duplicates (§4.8).
type ResultChecker interface {
	HasTrackingResult(ctx context.Context, correlationID string) (bool, error)
}

// Config carries the per-kind SendGrid dynamic template ids and the
// shared from-address.
type Config struct {
	APIKey      string
	FromAddress string
	FromName    string
	Templates   map[Kind]string
}

// Notifier sends one transactional email per job-batch shard outcome.
type Notifier struct {
	cfg     Config
	client  *sendgrid.Client
	checker ResultChecker
}

func New(cfg Config, checker ResultChecker) *Notifier {
	return &Notifier{
		cfg:     cfg,
		client:  sendgrid.NewSendClient(cfg.APIKey),
		checker: checker,
	}
}

// Vars is the fixed template-variable mapping the spec's send(kind, to,
// vars) contract carries.
type Vars map[string]string

// Send issues one transactional email for the given kind, per §4.8's
// contract. Nightly job batches never call Send at all — callers guard
// that at the call site, since the notifier has no notion of "nightly".
func (n *Notifier) Send(ctx context.Context, kind Kind, to string, correlationID string, vars Vars) error {
	if kind == KindSucceeded {
		exists, err := n.checker.HasTrackingResult(ctx, correlationID)
		if err != nil {
			return fmt.Errorf("notify: check existing tracking result: %w", err)
		}
		if exists {
			// Already recorded by an earlier callback delivery for this
			// shard: skip to avoid a duplicate "succeeded" email.
			return nil
		}
	}

	templateID, ok := n.cfg.Templates[kind]
	if !ok || templateID == "" {
		return apierr.New(apierr.InvalidRequest, fmt.Sprintf("no email template configured for kind %q", kind))
	}

	from := mail.NewEmail(n.cfg.FromName, n.cfg.FromAddress)
	toEmail := mail.NewEmail("", to)

	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.SetTemplateID(templateID)

	p := mail.NewPersonalization()
	p.AddTos(toEmail)
	for key, value := range vars {
		p.SetDynamicTemplateData(key, value)
	}
	m.AddPersonalizations(p)

	resp, err := n.client.SendWithContext(ctx, m)
	if err != nil {
		return apierr.Wrap(apierr.RetryableUpstream, "sendgrid request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.New(apierr.UpstreamFailed, fmt.Sprintf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}
