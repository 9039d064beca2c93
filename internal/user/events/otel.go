package events

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogPublisher emits events as OpenTelemetry log records.
type LogPublisher struct {
	logger otellog.Logger
}

// NewLogPublisher returns a publisher that emits through provider. A nil provider yields Nop.
func NewLogPublisher(provider *sdklog.LoggerProvider) Publisher {
	if provider == nil {
		return Nop{}
	}
	return &LogPublisher{logger: provider.Logger("user-directory.events")}
}

// Publish converts e into a log record and emits it.
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	rec := otellog.Record{}
	rec.SetTimestamp(e.OccurredAt)
	rec.SetBody(otellog.StringValue(string(e.Type)))
	rec.SetSeverity(otellog.SeverityInfo)
	rec.AddAttributes(
		otellog.String("event_type", string(e.Type)),
		otellog.Int64("user_id", e.UserID),
		otellog.Int("status", e.Status),
		otellog.Bool("deleted", e.Deleted),
	)
	p.logger.Emit(ctx, rec)
	return nil
}

// Close is a no-op; the provider is shut down with the telemetry providers.
func (p *LogPublisher) Close() error { return nil }
