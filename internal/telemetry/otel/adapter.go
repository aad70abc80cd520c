package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"magnos-hutch/backend/internal/session/domain"
	"magnos-hutch/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends gameplay events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("mh.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the gameplay event to an OTel log record and emits it. Best-effort; errors are logged.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.TS.IsZero() {
		rec.SetTimestamp(event.TS)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(event.Props) > 0 {
		if body, err := json.Marshal(event.Props); err == nil {
			rec.SetBody(otellog.BytesValue(body))
		}
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.UserID != nil && *event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", *event.UserID))
	}
	if event.Name != "" {
		rec.AddAttributes(otellog.String("event", event.Name))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
