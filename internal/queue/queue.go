// Package queue wraps the inngestgo event client used to fan a
// submission out into per-provider shard messages (§4.1 step 8), and
// names the event types the two dispatcher workers subscribe to.
// Grounded on the teacher's main.go client construction
// (inngestgo.NewClient + client.Send) and workflows/org_processor.go's
// event-trigger-per-topic registration shape.
package queue

import (
	"context"
	"fmt"

	"github.com/inngest/inngestgo"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

// Topic names one queue topic per scraping provider, per §4.1 step 8's
// "topic of the active provider" routing rule.
type Topic string

const (
	TopicProviderA Topic = "dispatch.providerA"
	TopicProviderB Topic = "dispatch.providerB"
)

// PromptPayload is one prompt record carried in a shard message.
type PromptPayload struct {
	ID             string          `json:"id"`
	Text           string          `json:"text"`
	TrackingID     string          `json:"tracking_id"`
	Geo            *models.Location `json:"geo,omitempty"`
	BrandMentions  []string        `json:"brand_mentions,omitempty"`
	DomainMentions []string        `json:"domain_mentions,omitempty"`
}

// ShardMessage is the fan-out unit published once per shard, carrying
// everything a dispatcher worker needs without a database round trip
// before it can start work (§4.1 step 8).
type ShardMessage struct {
	OpenAIKey    string          `json:"openai_key"`
	OpenAIModel  string          `json:"openai_model"`
	Email        *string         `json:"email,omitempty"`
	ProjectID    string          `json:"project_id"`
	UserID       string          `json:"user_id"`
	JobBatchID   string          `json:"job_batch_id"`
	BatchNumber  int             `json:"batch_number"`
	TotalBatches int             `json:"total_batches"`
	Prompts      []PromptPayload `json:"prompts"`
	Service      string          `json:"service"`
	Nightly      bool            `json:"nightly"`
	WebSearch    bool            `json:"web_search"`
}

// eventName maps a provider topic to the inngest event name dispatcher
// workers register their EventTrigger against.
func eventName(topic Topic) string {
	return string(topic)
}

// Publisher fans shard messages out onto the event bus. Publication is
// best-effort per §4.1 step 8: a failed publish is logged by the caller
// and does not roll back the already-committed JobBatch/TrackingResult
// rows.
type Publisher struct {
	client inngestgo.Client
}

func NewPublisher(client inngestgo.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends one shard message to the given provider's topic.
func (p *Publisher) Publish(ctx context.Context, topic Topic, msg ShardMessage) error {
	evt := inngestgo.Event{
		Name: eventName(topic),
		Data: map[string]interface{}{
			"openai_key":    msg.OpenAIKey,
			"openai_model":  msg.OpenAIModel,
			"email":         msg.Email,
			"project_id":    msg.ProjectID,
			"user_id":       msg.UserID,
			"job_batch_id":  msg.JobBatchID,
			"batch_number":  msg.BatchNumber,
			"total_batches": msg.TotalBatches,
			"prompts":       msg.Prompts,
			"service":       msg.Service,
			"nightly":       msg.Nightly,
			"web_search":    msg.WebSearch,
		},
	}
	if _, err := p.client.Send(ctx, evt); err != nil {
		return fmt.Errorf("queue: publish to %s: %w", topic, err)
	}
	return nil
}
