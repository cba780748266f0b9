package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// AuditConsumer logs every antenne event it receives.
type AuditConsumer struct {
	logger *zerolog.Logger
}

func NewAuditConsumer(logger *zerolog.Logger) *AuditConsumer {
	return &AuditConsumer{logger: logger}
}

type auditEnvelope struct {
	ID        *int64 `json:"id"`
	AntenneID *int64 `json:"antenneId"`
	Timestamp string `json:"timestamp"`
}

// Handle records one event. Bodies without an antenne id are rejected.
func (a *AuditConsumer) Handle(_ context.Context, routingKey string, payload json.RawMessage) error {
	var env auditEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode %s event: %w", routingKey, err)
	}

	id := env.AntenneID
	if id == nil {
		id = env.ID
	}
	if id == nil {
		return fmt.Errorf("%s event has no antenne id", routingKey)
	}

	a.logger.Info().
		Str("routing_key", routingKey).
		Int64("antenne_id", *id).
		Str("event_timestamp", env.Timestamp).
		Msg("antenne event received")
	return nil
}

// Register subscribes the consumer to every antenne event on queue.
func (a *AuditConsumer) Register(ctx context.Context, p *Publisher, queue string) error {
	return p.Subscribe(ctx, queue, []string{RoutingKeyAll}, a.Handle)
}
