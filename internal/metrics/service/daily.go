// Package service implements the read-only metrics engine: daily play
// statistics over a date range and the session-duration histogram.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"magnos-hutch/backend/internal/session/domain"
)

// SessionReader is the minimal store access the daily aggregator needs.
type SessionReader interface {
	ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.Session, error)
}

// DailyStat is one day's aggregate. Days with no sessions still appear with
// zero counts so consumers always get a dense time series.
type DailyStat struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	PlaysCount    int     `json:"plays_count"`
	AvgScore      float64 `json:"avg_score"`
	AvgSessionSec float64 `json:"avg_session_sec"`
	UniqueUsers   int     `json:"unique_users"`
}

// DailyService computes per-day statistics from persisted sessions.
type DailyService struct {
	sessions SessionReader
}

// NewDailyService returns a DailyService reading from sessions.
func NewDailyService(sessions SessionReader) *DailyService {
	return &DailyService{sessions: sessions}
}

type dayBucket struct {
	plays    int
	sumScore float64
	cntScore int
	sumDur   float64
	cntDur   int
	users    map[string]struct{}
}

// Range returns one DailyStat per calendar day from `from` to `to` inclusive,
// in chronological order. from > to yields an empty result. Only the date
// component of each argument is used; sessions are bucketed by the calendar
// date of started_at in UTC.
func (s *DailyService) Range(ctx context.Context, from, to time.Time) ([]DailyStat, error) {
	fromDay := dateOnly(from)
	toDay := dateOnly(to)
	if fromDay.After(toDay) {
		return []DailyStat{}, nil
	}

	buckets := map[string]*dayBucket{}
	for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
		buckets[dayKey(d)] = &dayBucket{users: map[string]struct{}{}}
	}

	// Full-day span: first instant of the start day to the last instant of the end day.
	windowEnd := toDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
	rows, err := s.sessions.ListSessionsStartedBetween(ctx, fromDay, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("daily metrics: list sessions: %w", err)
	}

	for _, sess := range rows {
		b, ok := buckets[dayKey(sess.StartedAt.UTC())]
		if !ok {
			// Edge rounding put the session outside the requested day list; drop it.
			continue
		}
		b.plays++
		if sess.UserID != nil && *sess.UserID != "" {
			b.users[*sess.UserID] = struct{}{}
		}
		if sess.Score != nil {
			b.sumScore += float64(*sess.Score)
			b.cntScore++
		}
		if sess.DurationSec != nil {
			b.sumDur += float64(*sess.DurationSec)
			b.cntDur++
		}
	}

	var out []DailyStat
	for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
		b := buckets[dayKey(d)]
		avgScore := 0.0
		if b.cntScore > 0 {
			avgScore = b.sumScore / float64(b.cntScore)
		}
		avgDur := 0.0
		if b.cntDur > 0 {
			avgDur = b.sumDur / float64(b.cntDur)
		}
		out = append(out, DailyStat{
			Date:          dayKey(d),
			PlaysCount:    b.plays,
			AvgScore:      round2(avgScore),
			AvgSessionSec: round2(avgDur),
			UniqueUsers:   len(b.users),
		})
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
