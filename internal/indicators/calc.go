// Package indicators computes technical indicators over stored closes and
// persists them as a derived cache. Recompute is delete-then-recreate: rows
// are never updated in place.
package indicators

import "errors"

var (
	errBadPeriod        = errors.New("period must be positive")
	errInsufficientData = errors.New("not enough data points for period")
)

// SMA computes the simple moving average over the last period values.
// closes must be ordered ascending by time.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errBadPeriod
	}
	if len(closes) < period {
		return 0, errInsufficientData
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// RSI computes the Wilder-smoothed relative strength index over the given
// period. closes must be ordered ascending by time and hold at least
// period+1 values.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errBadPeriod
	}
	if len(closes) < period+1 {
		return 0, errInsufficientData
	}

	// Seed averages from the first `period` changes.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the rest of the series.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
