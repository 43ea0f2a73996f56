package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// RubricChange signals that an assessment's sections or marking options were
// mutated and its total marks must be recomputed before the mutating call
// returns.
type RubricChange struct {
	AssessmentID uint
}

// RubricListener consumes rubric change events synchronously. An error aborts
// the mutating call; recalculation is never deferred or retried.
type RubricListener interface {
	RubricChanged(ctx context.Context, change RubricChange) error
}

// EventPublisher emits domain events for external collaborators such as the
// notification pipeline. Publishing is best effort and never fails the
// triggering operation.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{})
}

type natsPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNatsPublisher wraps a NATS connection as an EventPublisher. A nil
// connection yields a publisher that drops everything, so wiring stays
// optional in environments without a broker.
func NewNatsPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) EventPublisher {
	return &natsPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

type eventEnvelope struct {
	Subject string      `json:"subject"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, payload interface{}) {
	if p.conn == nil {
		return
	}

	full := subject
	if p.subjectBase != "" {
		full = p.subjectBase + "." + subject
	}

	data, err := json.Marshal(eventEnvelope{Subject: full, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", full).Msg("failed to encode event payload")
		return
	}

	if err := p.conn.Publish(full, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", full).Msg("failed to publish event")
	}
}
