package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// IndicatorStore is an in-memory implementation of storage.IndicatorStore.
type IndicatorStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[indicatorKey]*domain.ComputedIndicator
}

type indicatorKey struct {
	instrumentID  int64
	unix          int64
	indicatorType string
	parameters    string
}

// NewIndicatorStore creates a new in-memory indicator store.
func NewIndicatorStore() *IndicatorStore {
	return &IndicatorStore{
		nextID: 1,
		data:   make(map[indicatorKey]*domain.ComputedIndicator),
	}
}

// Compile-time interface check.
var _ storage.IndicatorStore = (*IndicatorStore)(nil)

func indicatorKeyFor(ind *domain.ComputedIndicator) indicatorKey {
	return indicatorKey{
		instrumentID:  ind.InstrumentID,
		unix:          ind.Timestamp.UnixNano(),
		indicatorType: ind.IndicatorType,
		parameters:    ind.Parameters,
	}
}

// Insert adds a single indicator value.
func (s *IndicatorStore) Insert(_ context.Context, ind *domain.ComputedIndicator) error {
	if ind == nil || ind.InstrumentID == 0 || ind.IndicatorType == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := indicatorKeyFor(ind)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.insertLocked(key, ind)
	return nil
}

// InsertBulk adds multiple indicator values atomically. Fails the
// entire batch on any duplicate.
func (s *IndicatorStore) InsertBulk(_ context.Context, inds []*domain.ComputedIndicator) (int, error) {
	if len(inds) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[indicatorKey]struct{}, len(inds))
	for _, ind := range inds {
		if ind == nil || ind.InstrumentID == 0 || ind.IndicatorType == "" {
			return 0, storage.ErrInvalidInput
		}
		key := indicatorKeyFor(ind)
		if _, exists := s.data[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, ind := range inds {
		s.insertLocked(indicatorKeyFor(ind), ind)
	}
	return len(inds), nil
}

func (s *IndicatorStore) insertLocked(key indicatorKey, ind *domain.ComputedIndicator) {
	indCopy := *ind
	indCopy.ID = s.nextID
	indCopy.CreatedAt = time.Now().UTC()
	s.nextID++
	s.data[key] = &indCopy
}

// GetLatest retrieves the n most recent values of one indicator type,
// descending by timestamp.
func (s *IndicatorStore) GetLatest(_ context.Context, instrumentID int64, indicatorType string, n int) ([]*domain.ComputedIndicator, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.collectLocked(instrumentID, indicatorType, func(*domain.ComputedIndicator) bool { return true })
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// GetByTypeRange retrieves values of one indicator type within
// [start, end] inclusive, descending by timestamp.
func (s *IndicatorStore) GetByTypeRange(_ context.Context, instrumentID int64, indicatorType string, start, end time.Time) ([]*domain.ComputedIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.collectLocked(instrumentID, indicatorType, func(ind *domain.ComputedIndicator) bool {
		return !ind.Timestamp.Before(start) && !ind.Timestamp.After(end)
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// DeleteByRange removes indicator values within [start, end] inclusive,
// optionally restricted to one type (empty means all types).
func (s *IndicatorStore) DeleteByRange(_ context.Context, instrumentID int64, start, end time.Time, indicatorType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, ind := range s.data {
		if ind.InstrumentID != instrumentID {
			continue
		}
		if ind.Timestamp.Before(start) || ind.Timestamp.After(end) {
			continue
		}
		if indicatorType != "" && ind.IndicatorType != indicatorType {
			continue
		}
		delete(s.data, key)
		deleted++
	}
	return deleted, nil
}

func (s *IndicatorStore) collectLocked(instrumentID int64, indicatorType string, keep func(*domain.ComputedIndicator) bool) []*domain.ComputedIndicator {
	var result []*domain.ComputedIndicator
	for _, ind := range s.data {
		if ind.InstrumentID == instrumentID && ind.IndicatorType == indicatorType && keep(ind) {
			indCopy := *ind
			result = append(result, &indCopy)
		}
	}
	return result
}
