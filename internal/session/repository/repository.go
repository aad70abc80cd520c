package repository

import (
	"context"
	"time"

	"magnos-hutch/backend/internal/session/domain"
)

// Store defines persistence for sessions and the append-only event log.
type Store interface {
	// GetSession returns the session for id, or nil if not found.
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// UpsertSession inserts the session or replaces its mutable fields by id.
	UpsertSession(ctx context.Context, s *domain.Session) error
	// AppendEvent appends one event to the log. It sets e.ID on success.
	AppendEvent(ctx context.Context, e *domain.Event) error
	// ListSessionsStartedBetween returns sessions with from <= started_at <= to.
	ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.Session, error)
	// ListKnownDurations returns the duration_sec of every session that has one.
	ListKnownDurations(ctx context.Context) ([]int64, error)
}

// TxStore is a Store that can run a function inside a single transaction.
// The Store passed to fn sees uncommitted writes; if fn returns an error
// the transaction is rolled back and none of its writes are visible.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}
