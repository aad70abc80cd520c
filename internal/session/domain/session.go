package domain

import "time"

// Well-known event names and payload fields the reducer reacts to.
// All other event names pass through to the event log untouched.
const (
	EventGameStart = "game_start"
	EventGameOver  = "game_over"

	// PropFinalScore is the game_over payload field holding the final score.
	PropFinalScore = "final_score"
)

// Session is the mutable per-session summary derived from events.
// The event log is the source of truth; a Session can be rebuilt by
// replaying all events with its ID.
type Session struct {
	ID        string
	UserID    *string // nil if the producer never sent one
	StartedAt time.Time
	EndedAt   *time.Time
	// DurationSec is EndedAt-StartedAt in whole seconds; set iff EndedAt is set.
	// Negative values from clock skew are stored as computed, never clamped.
	DurationSec *int64
	Score       *int64
}

// Event is one immutable telemetry record. Events are appended verbatim
// regardless of whether they affect session state.
type Event struct {
	ID        int64
	SessionID string
	UserID    *string
	Name      string
	TS        time.Time
	Props     map[string]any // open payload; nil when absent
}
