// Package producer emits gameplay events to Kafka for downstream consumers
// (e.g. the Loki fan-out worker).
package producer

import (
	"context"

	"magnos-hutch/backend/internal/session/domain"
)

// Producer emits gameplay events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
