package domain

import (
	"math"
	"testing"
	"time"
)

func validPoint() *PricePoint {
	return &PricePoint{
		InstrumentID: 1,
		Timestamp:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Open:         42000,
		High:         43100,
		Low:          41500,
		Close:        42800,
		Volume:       1250.5,
	}
}

func TestPricePoint_ValidateOK(t *testing.T) {
	if err := validPoint().Validate(); err != nil {
		t.Fatalf("valid point rejected: %v", err)
	}
}

func TestPricePoint_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PricePoint)
	}{
		{"zero timestamp", func(p *PricePoint) { p.Timestamp = time.Time{} }},
		{"negative open", func(p *PricePoint) { p.Open = -1 }},
		{"zero close", func(p *PricePoint) { p.Close = 0 }},
		{"NaN high", func(p *PricePoint) { p.High = math.NaN() }},
		{"infinite low", func(p *PricePoint) { p.Low = math.Inf(1) }},
		{"negative volume", func(p *PricePoint) { p.Volume = -10 }},
		{"high below close", func(p *PricePoint) { p.High = p.Close - 1 }},
		{"low above open", func(p *PricePoint) { p.Low = p.Open + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPoint()
			tt.mutate(p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestPricePoint_ZeroVolumeAllowed(t *testing.T) {
	p := validPoint()
	p.Volume = 0
	if err := p.Validate(); err != nil {
		t.Errorf("zero volume should be valid: %v", err)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" btc "); got != "BTC" {
		t.Errorf("NormalizeCode(\" btc \") = %q, want BTC", got)
	}
	if got := NormalizeCode("usd"); got != "USD" {
		t.Errorf("NormalizeCode(\"usd\") = %q, want USD", got)
	}
}
