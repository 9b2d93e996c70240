// Package main seeds the database with an initial set of instruments and
// daily OHLCV history, then computes indicators over the seeded range.
// Without a live source it generates a synthetic random-walk series, which
// is enough to exercise queries, metrics, and the chunk lifecycle locally.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/indicators"
	"crypto-series-engine/internal/storage"
	"crypto-series-engine/internal/storage/migrations"
	pgstore "crypto-series-engine/internal/storage/postgres"
)

// Instruments to seed, with a synthetic base price per symbol.
var seedInstruments = []struct {
	Symbol    string
	Name      string
	BasePrice float64
}{
	{"BTC", "Bitcoin", 42000},
	{"ETH", "Ethereum", 2500},
	{"LTC", "Litecoin", 70},
	{"XRP", "Ripple", 0.55},
	{"BCH", "Bitcoin Cash", 240},
	{"ADA", "Cardano", 0.45},
	{"DOT", "Polkadot", 6.5},
	{"LINK", "Chainlink", 14},
}

const defaultMarket = "USD"

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "TimescaleDB connection string")
	days := flag.Int("days", 120, "Days of daily history to generate per instrument")
	seed := flag.Int64("seed", 42, "Random seed for the synthetic series")
	withIndicators := flag.Bool("indicators", true, "Compute SMA/RSI over the seeded range")
	flag.Parse()

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)

	if *dsn == "" {
		logger.Fatal("--dsn is required")
	}
	if *days < 2 {
		logger.Fatal("--days must be at least 2")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, pgstore.Config{DSN: *dsn})
	if err != nil {
		logger.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	instruments := pgstore.NewInstrumentStore(pool)
	prices := pgstore.NewPricePointStore(pool)
	indicatorStore := pgstore.NewIndicatorStore(pool)
	svc := indicators.NewService(prices, indicatorStore)

	rng := rand.New(rand.NewSource(*seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(*days - 1))

	seeded, skipped := 0, 0
	for _, entry := range seedInstruments {
		logger.Printf("Seeding %s (%s/%s)...", entry.Name, entry.Symbol, defaultMarket)

		inst, err := instruments.ResolveOrCreate(ctx, entry.Symbol, defaultMarket, entry.Name)
		if err != nil {
			logger.Fatalf("resolve %s: %v", entry.Symbol, err)
		}

		points := syntheticDailySeries(inst.ID, entry.BasePrice, start, *days, rng)
		n, err := prices.BulkAppend(ctx, points)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				logger.Printf("  %s already has points in range, skipping", entry.Symbol)
				skipped++
				continue
			}
			logger.Fatalf("bulk append %s: %v", entry.Symbol, err)
		}
		logger.Printf("  inserted %d price rows", n)
		seeded++

		if *withIndicators {
			rows, err := svc.Recompute(ctx, inst.ID, start, end, []int{7, 30}, []int{14})
			if err != nil {
				logger.Fatalf("compute indicators for %s: %v", entry.Symbol, err)
			}
			logger.Printf("  wrote %d indicator rows", rows)
		}
	}

	logger.Printf("Done: %d instrument(s) seeded, %d skipped", seeded, skipped)
}

// syntheticDailySeries generates a bounded random walk of daily bars with a
// valid OHLC shape.
func syntheticDailySeries(instrumentID int64, base float64, start time.Time, days int, rng *rand.Rand) []*domain.PricePoint {
	points := make([]*domain.PricePoint, 0, days)
	price := base
	for i := 0; i < days; i++ {
		// Daily move within ±3%.
		drift := 1 + (rng.Float64()-0.5)*0.06
		open := price
		close := price * drift
		high := maxf(open, close) * (1 + rng.Float64()*0.01)
		low := minf(open, close) * (1 - rng.Float64()*0.01)
		volume := 1e6 * (0.5 + rng.Float64())

		points = append(points, &domain.PricePoint{
			InstrumentID: instrumentID,
			Timestamp:    start.AddDate(0, 0, i),
			Open:         round4(open),
			High:         round4(high),
			Low:          round4(low),
			Close:        round4(close),
			Volume:       round4(volume),
		})
		price = close
	}
	return points
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
