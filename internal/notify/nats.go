// Package notify delivers business events to interested consumers.
//
// Delivery is best-effort by contract: billing reconciliation must never
// fail because a notification could not be published, so sinks log and
// swallow their own errors.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/gjall/internal/domain"
)

// NATSSink publishes business events to NATS subjects. The subject is
// derived from the event type: a "billing.payment_succeeded" event with
// prefix "gjall" goes to "gjall.billing.payment_succeeded".
type NATSSink struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

var _ domain.NotificationSink = (*NATSSink)(nil)

// envelope is the wire format for published events.
type envelope struct {
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewNATSSink connects to the given NATS URL and returns a sink publishing
// under subjectPrefix.
func NewNATSSink(url, subjectPrefix string, logger *slog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("gjall-billing"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSSink{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

// RecordBusinessEvent publishes the event. Failures are logged and dropped.
func (s *NATSSink) RecordBusinessEvent(ctx context.Context, eventType string, data map[string]any) {
	payload, err := json.Marshal(envelope{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode business event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}

	subject := s.subjectPrefix + "." + eventType
	if err := s.conn.Publish(subject, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish business event",
			slog.String("event_type", eventType),
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return
	}

	s.logger.DebugContext(ctx, "published business event",
		slog.String("event_type", eventType),
		slog.String("subject", subject))
}

// Close drains the connection so buffered publishes flush before shutdown.
func (s *NATSSink) Close() {
	if err := s.conn.Drain(); err != nil {
		s.logger.Error("failed to drain nats connection", slog.String("error", err.Error()))
	}
}
