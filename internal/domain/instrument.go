package domain

import (
	"strings"
	"time"
)

// Instrument represents a tracked (symbol, market) pair.
// Corresponds to the instruments table in PostgreSQL.
type Instrument struct {
	ID        int64     // PRIMARY KEY, bigserial
	Symbol    string    // short code (BTC, ETH), upper-cased
	Market    string    // market currency code (USD, EUR), upper-cased
	Name      string    // display name (Bitcoin, Ethereum)
	IsActive  bool      // soft-delete flag; instruments are never hard-deleted
	CreatedAt time.Time // record creation timestamp
	UpdatedAt time.Time // bumped on every mutation, including deactivation
}

// NormalizeCode upper-cases and trims a symbol or market code.
// All lookups and writes go through this so that (btc, usd) and
// (BTC, USD) resolve to the same instrument.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
