package indicators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// Params is the parameter set serialized into each computed row. It takes
// part in row uniqueness, so the encoding must stay stable.
type Params struct {
	Period int `json:"period"`
}

func (p Params) encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// Service computes indicator batches over stored closes and persists them
// through an IndicatorStore. Recompute is delete-then-recreate over the
// affected range; rows are never updated in place.
type Service struct {
	prices     storage.PricePointStore
	indicators storage.IndicatorStore
}

func NewService(prices storage.PricePointStore, indicators storage.IndicatorStore) *Service {
	return &Service{prices: prices, indicators: indicators}
}

// Recompute rebuilds SMA and RSI rows for one instrument over
// [start, end]. Existing rows of the recomputed types in the range are
// deleted first, then every point with enough preceding history inside the
// range gets a fresh value per period. Returns the number of rows written.
func (s *Service) Recompute(ctx context.Context, instrumentID int64, start, end time.Time, smaPeriods, rsiPeriods []int) (int, error) {
	points, err := s.prices.GetRange(ctx, instrumentID, start, end)
	if err != nil {
		return 0, fmt.Errorf("load closes: %w", err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	var batch []*domain.ComputedIndicator
	for _, period := range smaPeriods {
		rows, err := smaRows(instrumentID, points, closes, period)
		if err != nil {
			return 0, err
		}
		batch = append(batch, rows...)
	}
	for _, period := range rsiPeriods {
		rows, err := rsiRows(instrumentID, points, closes, period)
		if err != nil {
			return 0, err
		}
		batch = append(batch, rows...)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if len(smaPeriods) > 0 {
		if _, err := s.indicators.DeleteByRange(ctx, instrumentID, start, end, domain.IndicatorSMA); err != nil {
			return 0, fmt.Errorf("clear stale sma rows: %w", err)
		}
	}
	if len(rsiPeriods) > 0 {
		if _, err := s.indicators.DeleteByRange(ctx, instrumentID, start, end, domain.IndicatorRSI); err != nil {
			return 0, fmt.Errorf("clear stale rsi rows: %w", err)
		}
	}

	n, err := s.indicators.InsertBulk(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("persist indicator batch: %w", err)
	}
	return n, nil
}

// smaRows computes one SMA value per point that has at least period closes
// behind it (inclusive). points and closes are ascending and index-aligned.
func smaRows(instrumentID int64, points []*domain.PricePoint, closes []float64, period int) ([]*domain.ComputedIndicator, error) {
	if period <= 0 {
		return nil, errBadPeriod
	}
	params := Params{Period: period}.encode()
	name := fmt.Sprintf("%s_%d", domain.IndicatorSMA, period)

	var rows []*domain.ComputedIndicator
	for i := period - 1; i < len(points); i++ {
		value, err := SMA(closes[:i+1], period)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &domain.ComputedIndicator{
			InstrumentID:  instrumentID,
			Timestamp:     points[i].Timestamp,
			IndicatorType: domain.IndicatorSMA,
			IndicatorName: name,
			Value:         value,
			Parameters:    params,
		})
	}
	return rows, nil
}

// rsiRows computes one RSI value per point with at least period+1 closes of
// history. Each value is smoothed over the full prefix up to its point.
func rsiRows(instrumentID int64, points []*domain.PricePoint, closes []float64, period int) ([]*domain.ComputedIndicator, error) {
	if period <= 0 {
		return nil, errBadPeriod
	}
	params := Params{Period: period}.encode()
	name := fmt.Sprintf("%s_%d", domain.IndicatorRSI, period)

	var rows []*domain.ComputedIndicator
	for i := period; i < len(points); i++ {
		value, err := RSI(closes[:i+1], period)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &domain.ComputedIndicator{
			InstrumentID:  instrumentID,
			Timestamp:     points[i].Timestamp,
			IndicatorType: domain.IndicatorRSI,
			IndicatorName: name,
			Value:         value,
			Parameters:    params,
		})
	}
	return rows, nil
}
