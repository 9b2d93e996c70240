package domain

import "time"

// Indicator types persisted in computed_indicators.
const (
	IndicatorSMA = "SMA"
	IndicatorRSI = "RSI"
)

// ComputedIndicator represents a pre-computed technical indicator value.
// Corresponds to the computed_indicators table in PostgreSQL.
// Multiple indicator types may share a timestamp; the same
// (type, parameters) pair may not. Recomputation is delete-then-recreate,
// never update in place.
type ComputedIndicator struct {
	ID            int64     // PRIMARY KEY, bigserial
	InstrumentID  int64     // FK to instruments
	Timestamp     time.Time // point the indicator is anchored at
	IndicatorType string    // SMA, RSI, ...
	IndicatorName string    // human-readable name (e.g. "SMA_20")
	Value         float64
	Parameters    string // JSON blob, part of the uniqueness key
	CreatedAt     time.Time
}
