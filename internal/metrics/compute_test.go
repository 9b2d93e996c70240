package metrics

import (
	"errors"
	"testing"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// descendingSeries builds a newest-first series of daily points.
// closes[0] is the latest close.
func descendingSeries(closes ...float64) []*domain.PricePoint {
	latest := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	series := make([]*domain.PricePoint, len(closes))
	for i, c := range closes {
		series[i] = &domain.PricePoint{
			InstrumentID: 1,
			Timestamp:    latest.AddDate(0, 0, -i),
			Open:         c - 10,
			High:         c + 50,
			Low:          c - 50,
			Close:        c,
			Volume:       1000,
		}
	}
	return series
}

func TestCompute_EmptySeries(t *testing.T) {
	_, err := Compute(nil)
	if !errors.Is(err, storage.ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
}

func TestCompute_SinglePoint(t *testing.T) {
	s, err := Compute(descendingSeries(42500))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if s.LatestClose != 42500 {
		t.Errorf("latest close = %v, want 42500", s.LatestClose)
	}
	// Daily change needs two points; it must be absent, not zero.
	if s.DailyChange != nil || s.DailyChangePercent != nil {
		t.Error("daily change produced for single-point series")
	}
	if s.Weekly == nil || s.Weekly.Points != 1 {
		t.Errorf("weekly window = %+v, want 1-point window", s.Weekly)
	}
}

func TestCompute_DailyChange(t *testing.T) {
	s, err := Compute(descendingSeries(42500, 41800))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if s.DailyChange == nil || *s.DailyChange != 700.00 {
		t.Fatalf("daily change = %v, want 700.00", s.DailyChange)
	}
	if s.DailyChangePercent == nil || *s.DailyChangePercent != 1.67 {
		t.Fatalf("daily change percent = %v, want 1.67", s.DailyChangePercent)
	}
}

func TestCompute_ZeroPreviousCloseOmitsPercent(t *testing.T) {
	s, err := Compute(descendingSeries(42500, 0))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if s.DailyChange == nil || *s.DailyChange != 42500 {
		t.Errorf("daily change = %v, want 42500", s.DailyChange)
	}
	if s.DailyChangePercent != nil {
		t.Errorf("percent computed against zero close: %v", *s.DailyChangePercent)
	}
}

func TestCompute_ShortSeriesShrinksWindows(t *testing.T) {
	s, err := Compute(descendingSeries(100, 200, 300))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if s.Weekly.Points != 3 {
		t.Errorf("weekly points = %d, want 3", s.Weekly.Points)
	}
	if s.Monthly.Points != 3 {
		t.Errorf("monthly points = %d, want 3", s.Monthly.Points)
	}
	if s.Weekly.AvgClose != 200.00 {
		t.Errorf("weekly avg close = %v, want 200.00", s.Weekly.AvgClose)
	}
}

func TestCompute_WindowsAreIndependent(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(1000 + i) // newest is 1000, oldest 1039
	}
	s, err := Compute(descendingSeries(closes...))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// Weekly covers closes 1000..1006, monthly 1000..1029; both anchor at the
	// latest point rather than chaining.
	if s.Weekly.Points != 7 || s.Weekly.AvgClose != 1003.00 {
		t.Errorf("weekly = %+v, want 7 points avg 1003.00", s.Weekly)
	}
	if s.Monthly.Points != 30 || s.Monthly.AvgClose != 1014.50 {
		t.Errorf("monthly = %+v, want 30 points avg 1014.50", s.Monthly)
	}
}

func TestCompute_RoundingAtBoundaryOnly(t *testing.T) {
	// 10.005 / 3.001 ratios: rounding intermediates first would give a
	// different percent than rounding only the final value.
	s, err := Compute(descendingSeries(10.005, 3.001))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if *s.DailyChange != 7.00 {
		t.Errorf("daily change = %v, want 7.00", *s.DailyChange)
	}
	// Full precision: (10.005-3.001)/3.001*100 = 233.389; rounded once = 233.39.
	if *s.DailyChangePercent != 233.39 {
		t.Errorf("daily change percent = %v, want 233.39", *s.DailyChangePercent)
	}
}

func TestWindowStats_MaxHighMinLow(t *testing.T) {
	series := descendingSeries(100, 500, 50)
	got := windowStats(series, 7)
	if got.MaxHigh != 550.00 {
		t.Errorf("max high = %v, want 550.00", got.MaxHigh)
	}
	if got.MinLow != 0.00 {
		t.Errorf("min low = %v, want 0.00", got.MinLow)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{-1.236, -1.24},
		{700, 700},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.want {
			t.Errorf("round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
