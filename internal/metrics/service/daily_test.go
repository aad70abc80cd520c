package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"magnos-hutch/backend/internal/session/domain"
)

type stubSessionReader struct {
	sessions []*domain.Session
	err      error
}

func (r *stubSessionReader) ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.Session, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.Session
	for _, s := range r.sessions {
		if !s.StartedAt.Before(from) && !s.StartedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sessionAt(id string, user string, at time.Time, score, dur *int64) *domain.Session {
	s := &domain.Session{ID: id, StartedAt: at, Score: score, DurationSec: dur}
	if user != "" {
		s.UserID = &user
	}
	return s
}

func i64(v int64) *int64 { return &v }

func TestRange_DenseSeries(t *testing.T) {
	reader := &stubSessionReader{}
	svc := NewDailyService(reader)

	got, err := svc.Range(context.Background(), day(2025, 3, 1), day(2025, 3, 7))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("len = %d, want 7 days regardless of data", len(got))
	}
	for i, st := range got {
		if st.PlaysCount != 0 || st.AvgScore != 0.0 || st.AvgSessionSec != 0.0 || st.UniqueUsers != 0 {
			t.Errorf("day %d: empty day should be all zeros, got %+v", i, st)
		}
	}
	if got[0].Date != "2025-03-01" || got[6].Date != "2025-03-07" {
		t.Errorf("date range = %s..%s", got[0].Date, got[6].Date)
	}
}

func TestRange_FromAfterToIsEmpty(t *testing.T) {
	svc := NewDailyService(&stubSessionReader{})

	got, err := svc.Range(context.Background(), day(2025, 3, 7), day(2025, 3, 1))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 when from > to", len(got))
	}
}

func TestRange_SingleDayAggregation(t *testing.T) {
	d := day(2025, 3, 10)
	reader := &stubSessionReader{sessions: []*domain.Session{
		sessionAt("s1", "u1", d.Add(9*time.Hour), i64(100), i64(60)),
		sessionAt("s2", "u1", d.Add(10*time.Hour), i64(200), i64(120)),
		sessionAt("s3", "u2", d.Add(11*time.Hour), nil, nil), // in progress, no score
	}}
	svc := NewDailyService(reader)

	got, err := svc.Range(context.Background(), d, d)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	st := got[0]
	if st.PlaysCount != 3 {
		t.Errorf("PlaysCount = %d, want 3", st.PlaysCount)
	}
	if st.UniqueUsers != 2 {
		t.Errorf("UniqueUsers = %d, want 2", st.UniqueUsers)
	}
	if st.AvgScore != 150.0 {
		t.Errorf("AvgScore = %v, want 150.0 (mean over sessions with a score)", st.AvgScore)
	}
	if st.AvgSessionSec != 90.0 {
		t.Errorf("AvgSessionSec = %v, want 90.0", st.AvgSessionSec)
	}
}

func TestRange_AnonymousSessionsNotCountedAsUsers(t *testing.T) {
	d := day(2025, 3, 10)
	reader := &stubSessionReader{sessions: []*domain.Session{
		sessionAt("s1", "", d.Add(time.Hour), nil, nil),
		sessionAt("s2", "", d.Add(2*time.Hour), nil, nil),
		sessionAt("s3", "u1", d.Add(3*time.Hour), nil, nil),
	}}
	svc := NewDailyService(reader)

	got, err := svc.Range(context.Background(), d, d)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if got[0].PlaysCount != 3 {
		t.Errorf("PlaysCount = %d, want 3", got[0].PlaysCount)
	}
	if got[0].UniqueUsers != 1 {
		t.Errorf("UniqueUsers = %d, want 1 (nil user_id is not a user)", got[0].UniqueUsers)
	}
}

func TestRange_BucketsByCalendarDay(t *testing.T) {
	d1 := day(2025, 3, 10)
	d2 := day(2025, 3, 11)
	reader := &stubSessionReader{sessions: []*domain.Session{
		sessionAt("s1", "u1", d1.Add(23*time.Hour+59*time.Minute), i64(10), i64(30)),
		sessionAt("s2", "u2", d2, i64(20), i64(60)),
	}}
	svc := NewDailyService(reader)

	got, err := svc.Range(context.Background(), d1, d2)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if got[0].PlaysCount != 1 || got[1].PlaysCount != 1 {
		t.Errorf("plays = %d/%d, want 1/1 (midnight boundary respected)", got[0].PlaysCount, got[1].PlaysCount)
	}
}

func TestRange_RoundsAveragesToTwoDecimals(t *testing.T) {
	d := day(2025, 3, 10)
	reader := &stubSessionReader{sessions: []*domain.Session{
		sessionAt("s1", "u1", d.Add(time.Hour), i64(10), i64(10)),
		sessionAt("s2", "u2", d.Add(2*time.Hour), i64(10), i64(10)),
		sessionAt("s3", "u3", d.Add(3*time.Hour), i64(11), i64(11)),
	}}
	svc := NewDailyService(reader)

	got, err := svc.Range(context.Background(), d, d)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	// 31/3 = 10.333... -> 10.33
	if got[0].AvgScore != 10.33 {
		t.Errorf("AvgScore = %v, want 10.33", got[0].AvgScore)
	}
	if got[0].AvgSessionSec != 10.33 {
		t.Errorf("AvgSessionSec = %v, want 10.33", got[0].AvgSessionSec)
	}
}

func TestRange_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := NewDailyService(&stubSessionReader{err: boom})

	if _, err := svc.Range(context.Background(), day(2025, 3, 1), day(2025, 3, 2)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
