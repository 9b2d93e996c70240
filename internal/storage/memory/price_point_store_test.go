package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

func dayPoint(instrumentID int64, ts time.Time, close float64) *domain.PricePoint {
	return &domain.PricePoint{
		InstrumentID: instrumentID,
		Timestamp:    ts,
		Open:         close - 50,
		High:         close + 100,
		Low:          close - 100,
		Close:        close,
		Volume:       1000,
	}
}

func TestPricePointStore_AppendAndGetAt(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, ts, 42000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.GetAt(ctx, 1, ts)
	if err != nil {
		t.Fatalf("GetAt failed: %v", err)
	}
	if got.Close != 42000 {
		t.Errorf("expected close 42000, got %v", got.Close)
	}

	if _, err := store.GetAt(ctx, 1, ts.Add(time.Hour)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing timestamp, got %v", err)
	}
}

func TestPricePointStore_DuplicateAppendLeavesPointUnchanged(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, ts, 42000)); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	err := store.Append(ctx, dayPoint(1, ts, 99999))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetAt(ctx, 1, ts)
	if err != nil {
		t.Fatalf("GetAt failed: %v", err)
	}
	if got.Close != 42000 {
		t.Errorf("stored point changed by failed append: close %v", got.Close)
	}
}

func TestPricePointStore_BulkAppendWholeBatchRejection(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	points := []*domain.PricePoint{
		dayPoint(1, base, 42000),
		dayPoint(1, base.AddDate(0, 0, 1), 42100),
		dayPoint(1, base, 42200), // intra-batch duplicate
	}

	n, err := store.BulkAppend(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted, got %d", n)
	}

	rows, _ := store.GetRange(ctx, 1, base.AddDate(0, 0, -1), base.AddDate(0, 0, 2))
	if len(rows) != 0 {
		t.Errorf("expected nothing inserted after rejected batch, got %d rows", len(rows))
	}
}

func TestPricePointStore_BulkAppendRoundTrip(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var points []*domain.PricePoint
	for i := 0; i < 10; i++ {
		points = append(points, dayPoint(1, base.AddDate(0, 0, i), 42000+float64(i)))
	}

	n, err := store.BulkAppend(ctx, points)
	if err != nil {
		t.Fatalf("BulkAppend failed: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 inserted, got %d", n)
	}

	rows, err := store.GetRange(ctx, 1, base, base.AddDate(0, 0, 9))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(rows))
	}
	for i, row := range rows {
		want := points[i]
		if !row.Timestamp.Equal(want.Timestamp) ||
			row.Open != want.Open || row.High != want.High ||
			row.Low != want.Low || row.Close != want.Close ||
			row.Volume != want.Volume {
			t.Errorf("row %d does not match inserted point", i)
		}
	}
}

func TestPricePointStore_GetRangeOrderedAndScoped(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []int64{1, 1, 1, 2} {
		if err := store.Append(ctx, dayPoint(id, base.AddDate(0, 0, i), 42000)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	rows, err := store.GetRange(ctx, 1, base, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for instrument 1, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Timestamp.After(rows[i-1].Timestamp) {
			t.Error("rows not strictly ascending by timestamp")
		}
	}
	for _, row := range rows {
		if row.InstrumentID != 1 {
			t.Errorf("row leaked from instrument %d", row.InstrumentID)
		}
	}
}

func TestPricePointStore_GetLatestShortHistory(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, dayPoint(1, base.AddDate(0, 0, i), 42000+float64(i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	rows, err := store.GetLatest(ctx, 1, 7)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (no padding), got %d", len(rows))
	}
	if rows[0].Close != 42002 {
		t.Errorf("expected newest point first, got close %v", rows[0].Close)
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Timestamp.Before(rows[i-1].Timestamp) {
			t.Error("rows not descending by timestamp")
		}
	}
}

func TestPricePointStore_StatsEmptyWindow(t *testing.T) {
	store := NewPricePointStore(0)

	stats, err := store.Stats(context.Background(), 1,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("expected count 0, got %d", stats.Count)
	}
	if stats.AvgClose != nil || stats.MaxHigh != nil || stats.MinLow != nil || stats.AvgVolume != nil {
		t.Error("expected nil aggregates for empty window")
	}
}

func TestPricePointStore_StatsSinglePoint(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := dayPoint(1, ts, 42000)
	if err := store.Append(ctx, p); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stats, err := store.Stats(ctx, 1, ts, ts)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 1 {
		t.Fatalf("expected count 1, got %d", stats.Count)
	}
	if *stats.AvgClose != p.Close {
		t.Errorf("avg close = %v, want %v", *stats.AvgClose, p.Close)
	}
	if *stats.MaxHigh != p.High || *stats.MinLow != p.Low {
		t.Errorf("single-sample extremes wrong: high %v low %v", *stats.MaxHigh, *stats.MinLow)
	}
}

func TestPricePointStore_CompressedChunkStillWritable(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	old := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, old, 40000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	n, err := store.CompressEligible(ctx, old.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("CompressEligible failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk compressed, got %d", n)
	}

	// Compression governs storage layout, not insert eligibility.
	if err := store.Append(ctx, dayPoint(1, old.Add(time.Hour), 40100)); err != nil {
		t.Errorf("write into compressed chunk failed: %v", err)
	}

	rows, err := store.GetRange(ctx, 1, old, old.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("compressed chunk not transparent to reads: %d rows", len(rows))
	}
}

func TestPricePointStore_RetiredChunkRejectsWrites(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ancient := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, ancient, 30000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, dayPoint(1, recent, 42000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dropped, err := store.DropExpired(ctx, ancient.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("DropExpired failed: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 chunk dropped, got %d", dropped)
	}

	err = store.Append(ctx, dayPoint(1, ancient, 30000))
	if !errors.Is(err, storage.ErrHistoricalWriteRejected) {
		t.Fatalf("expected ErrHistoricalWriteRejected, got %v", err)
	}

	// Recent data is untouched and the failed write left no trace.
	if _, err := store.GetAt(ctx, 1, recent); err != nil {
		t.Errorf("recent point lost after retention: %v", err)
	}
	if _, err := store.GetAt(ctx, 1, ancient); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("retired point resurfaced: %v", err)
	}
}

func TestPricePointStore_BulkAppendIntoRetiredHistoryRejectsAll(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ancient := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, ancient, 30000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := store.DropExpired(ctx, ancient.AddDate(1, 0, 0)); err != nil {
		t.Fatalf("DropExpired failed: %v", err)
	}

	n, err := store.BulkAppend(ctx, []*domain.PricePoint{
		dayPoint(1, recent, 42000),
		dayPoint(1, ancient, 30000),
	})
	if !errors.Is(err, storage.ErrHistoricalWriteRejected) {
		t.Fatalf("expected ErrHistoricalWriteRejected, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected no partial write, got %d", n)
	}
	if _, err := store.GetAt(ctx, 1, recent); !errors.Is(err, storage.ErrNotFound) {
		t.Error("rejected batch left a partial write behind")
	}
}

func TestPricePointStore_DeleteThenReinsert(t *testing.T) {
	store := NewPricePointStore(0)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, dayPoint(1, ts, 42000)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Delete(ctx, 1, ts); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, 1, ts); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := store.Append(ctx, dayPoint(1, ts, 42500)); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}
	got, err := store.GetAt(ctx, 1, ts)
	if err != nil {
		t.Fatalf("GetAt failed: %v", err)
	}
	if got.Close != 42500 {
		t.Errorf("correction not applied: close %v", got.Close)
	}
}
