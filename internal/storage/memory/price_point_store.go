package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// DefaultChunkInterval mirrors the hypertable chunk_time_interval.
const DefaultChunkInterval = 7 * 24 * time.Hour

// PricePointStore is an in-memory implementation of
// storage.PricePointStore that also simulates the chunk lifecycle, so
// it doubles as the storage.ChunkMaintainer for tests and memory runs.
type PricePointStore struct {
	mu            sync.RWMutex
	chunkInterval time.Duration
	nextID        int64
	data          map[pointKey]*domain.PricePoint
	compressed    map[int64]struct{} // chunk start (unix) -> compressed
	watermark     time.Time          // newest timestamp covered by retired chunks
}

type pointKey struct {
	instrumentID int64
	unix         int64
}

func keyFor(instrumentID int64, ts time.Time) pointKey {
	return pointKey{instrumentID: instrumentID, unix: ts.UnixNano()}
}

// NewPricePointStore creates a new in-memory price point store.
// A non-positive chunkInterval falls back to DefaultChunkInterval.
func NewPricePointStore(chunkInterval time.Duration) *PricePointStore {
	if chunkInterval <= 0 {
		chunkInterval = DefaultChunkInterval
	}
	return &PricePointStore{
		chunkInterval: chunkInterval,
		nextID:        1,
		data:          make(map[pointKey]*domain.PricePoint),
		compressed:    make(map[int64]struct{}),
	}
}

// Compile-time interface checks.
var (
	_ storage.PricePointStore = (*PricePointStore)(nil)
	_ storage.ChunkMaintainer = (*PricePointStore)(nil)
)

// Append adds one point. Compressed chunks still accept writes;
// retired chunks reject them.
func (s *PricePointStore) Append(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.InstrumentID == 0 {
		return storage.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Timestamp.Before(s.watermark) {
		return storage.ErrHistoricalWriteRejected
	}
	key := keyFor(p.InstrumentID, p.Timestamp)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.insertLocked(key, p)
	return nil
}

// BulkAppend adds multiple points with whole-batch rejection: any
// conflicting key, including an intra-batch duplicate, fails the batch
// and inserts nothing.
func (s *PricePointStore) BulkAppend(_ context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and detect conflicts before touching state.
	batchKeys := make(map[pointKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.InstrumentID == 0 {
			return 0, storage.ErrInvalidInput
		}
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		if p.Timestamp.Before(s.watermark) {
			return 0, storage.ErrHistoricalWriteRejected
		}

		key := keyFor(p.InstrumentID, p.Timestamp)
		if _, exists := s.data[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all.
	for _, p := range points {
		s.insertLocked(keyFor(p.InstrumentID, p.Timestamp), p)
	}
	return len(points), nil
}

func (s *PricePointStore) insertLocked(key pointKey, p *domain.PricePoint) {
	pointCopy := *p
	pointCopy.ID = s.nextID
	pointCopy.CreatedAt = time.Now().UTC()
	s.nextID++
	s.data[key] = &pointCopy
}

// Delete removes the point at an exact timestamp.
func (s *PricePointStore) Delete(_ context.Context, instrumentID int64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(instrumentID, ts)
	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// GetLatest retrieves the n most recent points, descending by timestamp.
func (s *PricePointStore) GetLatest(_ context.Context, instrumentID int64, n int) ([]*domain.PricePoint, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.collectLocked(instrumentID, func(p *domain.PricePoint) bool { return true })
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// GetRange retrieves points within [start, end] inclusive, ascending.
func (s *PricePointStore) GetRange(_ context.Context, instrumentID int64, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.collectLocked(instrumentID, func(p *domain.PricePoint) bool {
		return !p.Timestamp.Before(start) && !p.Timestamp.After(end)
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// GetAt retrieves the point at an exact timestamp or ErrNotFound.
func (s *PricePointStore) GetAt(_ context.Context, instrumentID int64, ts time.Time) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[keyFor(instrumentID, ts)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	pointCopy := *p
	return &pointCopy, nil
}

// Stats computes aggregates over [start, end] inclusive. Nil aggregates
// and count 0 for an empty window; compression state is irrelevant to
// the result.
func (s *PricePointStore) Stats(_ context.Context, instrumentID int64, start, end time.Time) (*domain.PriceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count               int64
		sumClose, sumVolume float64
		maxHigh, minLow     float64
	)
	for _, p := range s.data {
		if p.InstrumentID != instrumentID || p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		if count == 0 {
			maxHigh = p.High
			minLow = p.Low
		} else {
			if p.High > maxHigh {
				maxHigh = p.High
			}
			if p.Low < minLow {
				minLow = p.Low
			}
		}
		sumClose += p.Close
		sumVolume += p.Volume
		count++
	}

	stats := &domain.PriceStats{Count: count}
	if count > 0 {
		avgClose := sumClose / float64(count)
		avgVolume := sumVolume / float64(count)
		stats.AvgClose = &avgClose
		stats.MaxHigh = &maxHigh
		stats.MinLow = &minLow
		stats.AvgVolume = &avgVolume
	}
	return stats, nil
}

func (s *PricePointStore) collectLocked(instrumentID int64, keep func(*domain.PricePoint) bool) []*domain.PricePoint {
	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.InstrumentID == instrumentID && keep(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	return result
}

// CompressEligible marks every open chunk whose upper boundary is older
// than olderThan as compressed. Compression is transparent to reads and
// does not block later writes into the chunk.
func (s *PricePointStore) CompressEligible(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed := 0
	for start := range s.chunksLocked() {
		end := time.Unix(start, 0).UTC().Add(s.chunkInterval)
		if end.After(olderThan) {
			continue
		}
		if _, done := s.compressed[start]; done {
			continue
		}
		s.compressed[start] = struct{}{}
		compressed++
	}
	return compressed, nil
}

// DropExpired removes every chunk whose upper boundary is older than
// olderThan and advances the retention watermark. Dropped history
// cannot be rewritten.
func (s *PricePointStore) DropExpired(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for start := range s.chunksLocked() {
		end := time.Unix(start, 0).UTC().Add(s.chunkInterval)
		if end.After(olderThan) {
			continue
		}

		for key, p := range s.data {
			if cs := domain.ChunkStart(p.Timestamp, s.chunkInterval); cs.Unix() == start {
				delete(s.data, key)
			}
		}
		delete(s.compressed, start)
		if end.After(s.watermark) {
			s.watermark = end
		}
		dropped++
	}
	return dropped, nil
}

// ChunkStates reports the lifecycle state per chunk currently holding
// data, keyed by chunk start. Test and introspection helper.
func (s *PricePointStore) ChunkStates() map[time.Time]domain.ChunkState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make(map[time.Time]domain.ChunkState)
	for start := range s.chunksLocked() {
		state := domain.ChunkOpen
		if _, done := s.compressed[start]; done {
			state = domain.ChunkCompressed
		}
		states[time.Unix(start, 0).UTC()] = state
	}
	return states
}

// chunksLocked returns the set of chunk starts (unix seconds) that
// currently hold at least one point.
func (s *PricePointStore) chunksLocked() map[int64]struct{} {
	chunks := make(map[int64]struct{})
	for _, p := range s.data {
		chunks[domain.ChunkStart(p.Timestamp, s.chunkInterval).Unix()] = struct{}{}
	}
	return chunks
}
