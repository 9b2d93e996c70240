// Package metrics derives point-in-time analytics from an ordered OHLCV
// series. It is independent of storage: the input may come from the price
// store or straight from a quote fetch, as long as it is sorted newest first.
package metrics

import (
	"math"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// Window sizes anchored at the most recent point. Weekly and monthly are
// independent windows over the same series, not chained.
const (
	WeeklyWindow  = 7
	MonthlyWindow = 30
)

// WindowStats holds aggregates over the most recent n points of a series.
// Fewer than n points is fine: the window shrinks, it never pads.
type WindowStats struct {
	Points   int     `json:"points"`
	AvgClose float64 `json:"avg_close"`
	MaxHigh  float64 `json:"max_high"`
	MinLow   float64 `json:"min_low"`
}

// Summary is the full derived-metrics report for one series.
// DailyChange fields are nil when fewer than two points exist;
// DailyChangePercent is additionally nil when the previous close is zero.
type Summary struct {
	LatestClose        float64      `json:"latest_close"`
	LatestTimestamp    string       `json:"latest_timestamp"`
	DailyChange        *float64     `json:"daily_change,omitempty"`
	DailyChangePercent *float64     `json:"daily_change_percent,omitempty"`
	Weekly             *WindowStats `json:"weekly,omitempty"`
	Monthly            *WindowStats `json:"monthly,omitempty"`
}

// Compute derives the summary for a series sorted descending by timestamp
// (series[0] is the latest point). Returns ErrEmptySeries for zero points.
// All reported values are rounded to 2 decimal places here, at the boundary;
// intermediate computation stays at full precision.
func Compute(series []*domain.PricePoint) (*Summary, error) {
	if len(series) == 0 {
		return nil, storage.ErrEmptySeries
	}

	latest := series[0]
	s := &Summary{
		LatestClose:     round2(latest.Close),
		LatestTimestamp: latest.Timestamp.UTC().Format(time.RFC3339),
	}

	if len(series) >= 2 {
		previous := series[1]
		change := latest.Close - previous.Close
		s.DailyChange = ptr(round2(change))
		if previous.Close != 0 {
			s.DailyChangePercent = ptr(round2(change / previous.Close * 100))
		}
	}

	s.Weekly = windowStats(series, WeeklyWindow)
	s.Monthly = windowStats(series, MonthlyWindow)

	return s, nil
}

// windowStats aggregates the first n points (most recent n, or fewer if the
// series is shorter). Input must be sorted descending by timestamp.
func windowStats(series []*domain.PricePoint, n int) *WindowStats {
	if len(series) == 0 || n <= 0 {
		return nil
	}
	if n > len(series) {
		n = len(series)
	}

	window := series[:n]
	sumClose := 0.0
	maxHigh := math.Inf(-1)
	minLow := math.Inf(1)
	for _, p := range window {
		sumClose += p.Close
		if p.High > maxHigh {
			maxHigh = p.High
		}
		if p.Low < minLow {
			minLow = p.Low
		}
	}

	return &WindowStats{
		Points:   n,
		AvgClose: round2(sumClose / float64(n)),
		MaxHigh:  round2(maxHigh),
		MinLow:   round2(minLow),
	}
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}
