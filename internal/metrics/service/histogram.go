package service

import (
	"context"
	"errors"
	"fmt"
)

// DefaultBins is the bin count used when a request does not specify one.
const DefaultBins = 10

// ErrInvalidBins is returned when the requested bin count is not positive.
var ErrInvalidBins = errors.New("bins must be a positive integer")

// DurationReader is the minimal store access the histogram builder needs.
type DurationReader interface {
	ListKnownDurations(ctx context.Context) ([]int64, error)
}

// HistBin is one histogram bucket over session durations in seconds.
type HistBin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// HistogramService partitions known session durations into equal-width bins.
type HistogramService struct {
	durations DurationReader
}

// NewHistogramService returns a HistogramService reading from durations.
func NewHistogramService(durations DurationReader) *HistogramService {
	return &HistogramService{durations: durations}
}

// Histogram builds `bins` equal-width buckets over [min, max] of all known,
// non-negative durations. With no data it returns `bins` zero entries; when
// every duration is identical it returns a single degenerate bucket.
func (s *HistogramService) Histogram(ctx context.Context, bins int) ([]HistBin, error) {
	if bins <= 0 {
		return nil, ErrInvalidBins
	}

	all, err := s.durations.ListKnownDurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("histogram: list durations: %w", err)
	}
	durations := all[:0:0]
	for _, d := range all {
		if d >= 0 {
			durations = append(durations, d)
		}
	}

	if len(durations) == 0 {
		out := make([]HistBin, bins)
		return out, nil
	}

	mn, mx := durations[0], durations[0]
	for _, d := range durations[1:] {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
	}

	if mn == mx {
		return []HistBin{{From: float64(mn), To: float64(mx), Count: len(durations)}}, nil
	}

	width := float64(mx-mn) / float64(bins)
	counts := make([]int, bins)
	for _, d := range durations {
		idx := int(float64(d-mn) / width)
		if idx > bins-1 {
			// The maximum value lands in the last bin instead of overflowing.
			idx = bins - 1
		}
		counts[idx]++
	}

	out := make([]HistBin, bins)
	for i := 0; i < bins; i++ {
		out[i] = HistBin{
			From:  round2(float64(mn) + float64(i)*width),
			To:    round2(float64(mn) + float64(i+1)*width),
			Count: counts[i],
		}
	}
	return out, nil
}
