// Package telemetry fans ingested gameplay events out to external sinks
// (Kafka, OTel logs). Emission is best-effort and never affects ingestion.
package telemetry

import (
	"context"

	"magnos-hutch/backend/internal/session/domain"
)

// EventEmitter emits gameplay events to an external sink. Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
