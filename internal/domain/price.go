package domain

import (
	"fmt"
	"math"
	"time"
)

// PricePoint represents one OHLCV observation for an instrument.
// Corresponds to the price_points hypertable in PostgreSQL.
// Points are immutable once stored; corrections are delete+reinsert.
type PricePoint struct {
	ID           int64     // PRIMARY KEY, bigserial
	InstrumentID int64     // FK to instruments
	Timestamp    time.Time // observation time; unique per instrument
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	CreatedAt    time.Time // record creation timestamp
}

// Validate checks the OHLCV shape invariants before a point reaches
// storage: all prices positive and finite, volume non-negative,
// high >= max(open, close) and low <= min(open, close).
func (p *PricePoint) Validate() error {
	if p.Timestamp.IsZero() {
		return fmt.Errorf("price point: zero timestamp")
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"open", p.Open},
		{"high", p.High},
		{"low", p.Low},
		{"close", p.Close},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("price point: %s is not finite", v.name)
		}
		if v.value <= 0 {
			return fmt.Errorf("price point: %s must be positive, got %v", v.name, v.value)
		}
	}
	if math.IsNaN(p.Volume) || math.IsInf(p.Volume, 0) {
		return fmt.Errorf("price point: volume is not finite")
	}
	if p.Volume < 0 {
		return fmt.Errorf("price point: volume must be non-negative, got %v", p.Volume)
	}
	if p.High < math.Max(p.Open, p.Close) {
		return fmt.Errorf("price point: high %v below max(open, close)", p.High)
	}
	if p.Low > math.Min(p.Open, p.Close) {
		return fmt.Errorf("price point: low %v above min(open, close)", p.Low)
	}
	return nil
}

// PriceStats holds a server-side aggregate over an inclusive time window.
// All numeric fields are nil when the window contains no points.
type PriceStats struct {
	AvgClose  *float64
	MaxHigh   *float64
	MinLow    *float64
	AvgVolume *float64
	Count     int64
}
