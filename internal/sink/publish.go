package sink

import (
	"context"
	"fmt"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Publish announces finished outcomes on a topic.
type Publish struct {
	publisher harvest.Publisher
	topic     string
}

// NewPublish builds a Publish sink.
func NewPublish(publisher harvest.Publisher, topic string) *Publish {
	return &Publish{publisher: publisher, topic: topic}
}

// Persist publishes a completion notice for the outcome.
func (p *Publish) Persist(ctx context.Context, outcome harvest.Outcome) error {
	payload := map[string]any{
		"project":   outcome.Project,
		"engine":    outcome.Engine,
		"domain":    outcome.Domain,
		"status":    string(outcome.Status),
		"emails":    len(outcome.Results.Emails),
		"processed": outcome.Results.Processed,
		"end_time":  outcome.EndTime.Format(harvest.TimeLayout),
	}
	if outcome.Err != nil {
		payload["error"] = outcome.ErrorText()
	}
	if _, err := p.publisher.Publish(ctx, p.topic, payload); err != nil {
		return fmt.Errorf("publish outcome %s: %w", outcome.Domain, err)
	}
	return nil
}
