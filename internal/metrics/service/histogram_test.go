package service

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubDurationReader struct {
	durations []int64
	err       error
}

func (r *stubDurationReader) ListKnownDurations(ctx context.Context) ([]int64, error) {
	return r.durations, r.err
}

func TestHistogram_TenBins(t *testing.T) {
	durations := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	svc := NewHistogramService(&stubDurationReader{durations: durations})

	got, err := svc.Histogram(context.Background(), 10)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}

	total := 0
	for _, b := range got {
		total += b.Count
	}
	if total != len(durations) {
		t.Errorf("bin counts sum = %d, want %d (every value in exactly one bin)", total, len(durations))
	}
	if got[0].From != 10 {
		t.Errorf("first bin From = %v, want 10", got[0].From)
	}
	if got[9].To != 100 {
		t.Errorf("last bin To = %v, want 100", got[9].To)
	}
	// max value is clamped into the last bin, not overflowed
	if got[9].Count == 0 {
		t.Error("last bin should contain the maximum value")
	}
}

func TestHistogram_AllDurationsIdentical(t *testing.T) {
	svc := NewHistogramService(&stubDurationReader{durations: []int64{42, 42, 42, 42}})

	got, err := svc.Histogram(context.Background(), 10)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want single degenerate bucket", len(got))
	}
	if got[0].From != 42 || got[0].To != 42 || got[0].Count != 4 {
		t.Errorf("bucket = %+v, want {42 42 4}", got[0])
	}
}

func TestHistogram_NoData(t *testing.T) {
	svc := NewHistogramService(&stubDurationReader{})

	got, err := svc.Histogram(context.Background(), 5)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5 empty bins", len(got))
	}
	for i, b := range got {
		if b.From != 0 || b.To != 0 || b.Count != 0 {
			t.Errorf("bin %d = %+v, want zeros", i, b)
		}
	}
}

func TestHistogram_NegativeDurationsExcluded(t *testing.T) {
	svc := NewHistogramService(&stubDurationReader{durations: []int64{-30, 10, 20}})

	got, err := svc.Histogram(context.Background(), 2)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	total := 0
	for _, b := range got {
		total += b.Count
	}
	if total != 2 {
		t.Errorf("counted = %d, want 2 (negative duration excluded)", total)
	}
	if got[0].From != 10 {
		t.Errorf("From = %v, want 10 (min over non-negative values)", got[0].From)
	}
}

func TestHistogram_EdgesRounded(t *testing.T) {
	svc := NewHistogramService(&stubDurationReader{durations: []int64{0, 10}})

	got, err := svc.Histogram(context.Background(), 3)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	// width = 10/3 = 3.333...; edges rounded to 2 decimals
	want := []struct{ from, to float64 }{{0, 3.33}, {3.33, 6.67}, {6.67, 10}}
	for i, w := range want {
		if math.Abs(got[i].From-w.from) > 1e-9 || math.Abs(got[i].To-w.to) > 1e-9 {
			t.Errorf("bin %d = {%v %v}, want {%v %v}", i, got[i].From, got[i].To, w.from, w.to)
		}
	}
}

func TestHistogram_InvalidBins(t *testing.T) {
	svc := NewHistogramService(&stubDurationReader{durations: []int64{1, 2}})

	for _, bins := range []int{0, -1} {
		if _, err := svc.Histogram(context.Background(), bins); !errors.Is(err, ErrInvalidBins) {
			t.Errorf("bins=%d: err = %v, want ErrInvalidBins", bins, err)
		}
	}
}

func TestHistogram_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := NewHistogramService(&stubDurationReader{err: boom})

	if _, err := svc.Histogram(context.Background(), 10); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
