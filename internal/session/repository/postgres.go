package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"magnos-hutch/backend/internal/session/domain"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements TxStore over Postgres via database/sql.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

// NewPostgresStore returns a store that uses the given db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// InTx runs fn with a Store bound to a single transaction. It commits when fn
// returns nil and rolls back otherwise, so a failing batch leaves no writes behind.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return errors.New("store: InTx requires a root store")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	txStore := &PostgresStore{q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetSession returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_sec, score
		FROM mh_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// UpsertSession inserts the session or, if the id exists, replaces its mutable fields.
func (s *PostgresStore) UpsertSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO mh_sessions (id, user_id, started_at, ended_at, duration_sec, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration_sec = EXCLUDED.duration_sec,
			score = EXCLUDED.score`,
		sess.ID,
		nullStringFromPtr(sess.UserID),
		sess.StartedAt.UTC(),
		nullTimeFromPtr(sess.EndedAt),
		nullInt64FromPtr(sess.DurationSec),
		nullInt64FromPtr(sess.Score),
	)
	return err
}

// AppendEvent appends one event to the log. It sets e.ID on success.
func (s *PostgresStore) AppendEvent(ctx context.Context, e *domain.Event) error {
	props, err := propsJSON(e.Props)
	if err != nil {
		return fmt.Errorf("store: marshal props: %w", err)
	}
	return s.q.QueryRowContext(ctx, `
		INSERT INTO mh_events (session_id, user_id, name, ts, props)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.SessionID,
		nullStringFromPtr(e.UserID),
		e.Name,
		e.TS.UTC(),
		props,
	).Scan(&e.ID)
}

// ListSessionsStartedBetween returns sessions with from <= started_at <= to, in started_at order.
func (s *PostgresStore) ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.Session, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, started_at, ended_at, duration_sec, score
		FROM mh_sessions
		WHERE started_at >= $1 AND started_at <= $2
		ORDER BY started_at`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListKnownDurations returns the duration_sec of every session that has one.
func (s *PostgresStore) ListKnownDurations(ctx context.Context) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT duration_sec FROM mh_sessions WHERE duration_sec IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var (
		sess     domain.Session
		userID   sql.NullString
		endedAt  sql.NullTime
		duration sql.NullInt64
		score    sql.NullInt64
	)
	if err := r.Scan(&sess.ID, &userID, &sess.StartedAt, &endedAt, &duration, &score); err != nil {
		return nil, err
	}
	sess.StartedAt = sess.StartedAt.UTC()
	sess.UserID = ptrFromNullString(userID)
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sess.EndedAt = &t
	}
	sess.DurationSec = ptrFromNullInt64(duration)
	sess.Score = ptrFromNullInt64(score)
	return &sess, nil
}

func propsJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func nullStringFromPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func nullTimeFromPtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt64FromPtr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func ptrFromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
