package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oksasatya/account-service/internal/domain/event"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, body any) error
}

// IntegrationMessage is the envelope published for every stored account event.
type IntegrationMessage struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Version     int             `json:"version"`
	Type        event.Type      `json:"type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	RecordedAt  time.Time       `json:"recorded_at"`
	Payload     json.RawMessage `json:"payload"`
}

// IntegrationEvents publishes stored records to the events exchange with
// routing key account.<EventType>. Consumers deduplicate on ID.
type IntegrationEvents struct {
	pub eventPublisher
}

func NewIntegrationEvents(pub eventPublisher) *IntegrationEvents {
	return &IntegrationEvents{pub: pub}
}

func (p *IntegrationEvents) Name() string { return "integration_events" }

func (p *IntegrationEvents) Handle(ctx context.Context, rec event.Record) error {
	payload, err := event.Encode(event.Redacted(rec.Event))
	if err != nil {
		return err
	}
	msg := IntegrationMessage{
		ID:          fmt.Sprintf("%s:%d", rec.AggregateID, rec.Version),
		AggregateID: rec.AggregateID,
		Version:     rec.Version,
		Type:        rec.Type,
		OccurredAt:  rec.Event.OccurredAt(),
		RecordedAt:  rec.RecordedAt,
		Payload:     payload,
	}
	if err := p.pub.PublishEvent(ctx, RoutingKey(rec.Type), msg); err != nil {
		return fmt.Errorf("publish %s: %w", rec.Type, err)
	}
	return nil
}

func RoutingKey(t event.Type) string { return "account." + string(t) }
