package notify

import (
	"context"
	"log/slog"

	"github.com/dukerupert/gjall/internal/domain"
)

// NoopSink logs business events instead of publishing them. Used when no
// NATS URL is configured, typically in development.
type NoopSink struct {
	logger *slog.Logger
}

var _ domain.NotificationSink = (*NoopSink)(nil)

func NewNoopSink(logger *slog.Logger) *NoopSink {
	return &NoopSink{logger: logger}
}

func (s *NoopSink) RecordBusinessEvent(ctx context.Context, eventType string, data map[string]any) {
	s.logger.InfoContext(ctx, "business event",
		slog.String("event_type", eventType),
		slog.Any("data", data))
}
