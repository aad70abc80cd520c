// Package service implements the event-to-session reduction logic: folding a
// batch of named, timestamped events into session-record mutations while
// appending every event to the immutable event log.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"magnos-hutch/backend/internal/session/domain"
	"magnos-hutch/backend/internal/session/repository"
)

// Sentinel errors for the ingest service; the handler maps them to HTTP codes.
var (
	ErrMissingSessionID = errors.New("session_id is required")
	ErrEmptyBatch       = errors.New("events must not be empty")
	ErrTooManyEvents    = errors.New("too many events in batch")
)

// EventInput is one incoming event within a batch.
type EventInput struct {
	Name  string
	TS    time.Time
	Props map[string]any
}

// Batch is one ingest request: all events target the same session.
type Batch struct {
	SessionID string
	UserID    *string
	Events    []EventInput
}

// IngestService folds event batches into session records and appends every
// event to the log. One batch commits atomically: a storage failure rolls
// back both the session mutation and all appended events.
type IngestService struct {
	store     repository.TxStore
	maxEvents int
	anomalies metric.Int64Counter
}

// NewIngestService returns an IngestService backed by store. maxEvents caps
// the batch size (<=0 means 1000). meter may be nil; then anomaly counts are
// recorded on a no-op meter.
func NewIngestService(store repository.TxStore, maxEvents int, meter metric.Meter) *IngestService {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("mh.ingest")
	}
	anomalies, err := meter.Int64Counter("mh.sessions.negative_duration",
		metric.WithDescription("Sessions whose computed duration is negative (clock or ordering anomaly)"))
	if err != nil {
		anomalies, _ = noop.NewMeterProvider().Meter("mh.ingest").Int64Counter("mh.sessions.negative_duration")
	}
	return &IngestService{store: store, maxEvents: maxEvents, anomalies: anomalies}
}

// Ingest applies one batch and returns the number of events persisted.
// Validation errors (ErrMissingSessionID, ErrEmptyBatch, ErrTooManyEvents)
// are returned before any storage access.
func (s *IngestService) Ingest(ctx context.Context, b Batch) (int, error) {
	if b.SessionID == "" {
		return 0, ErrMissingSessionID
	}
	if len(b.Events) == 0 {
		return 0, ErrEmptyBatch
	}
	if len(b.Events) > s.maxEvents {
		return 0, fmt.Errorf("%w (max %d)", ErrTooManyEvents, s.maxEvents)
	}

	var negatives int64
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		sess, err := tx.GetSession(ctx, b.SessionID)
		if err != nil {
			return fmt.Errorf("ingest: get session: %w", err)
		}
		if sess != nil && sess.UserID == nil {
			sess.UserID = b.UserID
		}

		for _, in := range b.Events {
			sess = reduce(sess, b, in, &negatives)

			ev := &domain.Event{
				SessionID: b.SessionID,
				UserID:    b.UserID,
				Name:      in.Name,
				TS:        in.TS.UTC(),
				Props:     in.Props,
			}
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return fmt.Errorf("ingest: append event: %w", err)
			}
		}

		if sess != nil {
			if err := tx.UpsertSession(ctx, sess); err != nil {
				return fmt.Errorf("ingest: upsert session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if negatives > 0 {
		s.anomalies.Add(ctx, negatives)
	}
	return len(b.Events), nil
}

// reduce applies one event to the session summary. Duplicate start signals are
// idempotent (first-start-wins); end signals always win (last-end-wins); an end
// without a prior start synthesizes the session using the end timestamp as its
// start so partial data never fails the batch.
func reduce(sess *domain.Session, b Batch, in EventInput, negatives *int64) *domain.Session {
	ts := in.TS.UTC()

	switch in.Name {
	case domain.EventGameStart:
		if sess == nil {
			return &domain.Session{ID: b.SessionID, UserID: b.UserID, StartedAt: ts}
		}
		return sess

	case domain.EventGameOver:
		if sess == nil {
			sess = &domain.Session{ID: b.SessionID, UserID: b.UserID, StartedAt: ts}
		}
		ended := ts
		sess.EndedAt = &ended
		if score, ok := numericProp(in.Props, domain.PropFinalScore); ok {
			sess.Score = &score
		}
		dur := int64(ended.Sub(sess.StartedAt) / time.Second)
		sess.DurationSec = &dur
		if dur < 0 {
			*negatives++
		}
		return sess

	default:
		// Opaque to the reducer; the event still reaches the log.
		return sess
	}
}

// numericProp reads a numeric payload field defensively: non-numeric or absent
// values are ignored rather than rejected.
func numericProp(props map[string]any, key string) (int64, bool) {
	if props == nil {
		return 0, false
	}
	switch v := props[key].(type) {
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}
