package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Instrument
	byPair map[pairKey]int64
}

type pairKey struct {
	symbol string
	market string
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		nextID: 1,
		byID:   make(map[int64]*domain.Instrument),
		byPair: make(map[pairKey]int64),
	}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// ResolveOrCreate looks up an instrument by its normalized pair,
// creating it if absent. The store-level lock stands in for the unique
// constraint, so concurrent callers resolve to the same row.
func (s *InstrumentStore) ResolveOrCreate(_ context.Context, symbol, market, name string) (*domain.Instrument, error) {
	symbol = domain.NormalizeCode(symbol)
	market = domain.NormalizeCode(market)
	if symbol == "" || market == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{symbol: symbol, market: market}
	if id, exists := s.byPair[key]; exists {
		instCopy := *s.byID[id]
		return &instCopy, nil
	}

	now := time.Now().UTC()
	inst := &domain.Instrument{
		ID:        s.nextID,
		Symbol:    symbol,
		Market:    market,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.byID[inst.ID] = inst
	s.byPair[key] = inst.ID

	instCopy := *inst
	return &instCopy, nil
}

// GetByID retrieves an instrument by ID. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetByID(_ context.Context, id int64) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	instCopy := *inst
	return &instCopy, nil
}

// GetBySymbolMarket retrieves an instrument by its normalized pair.
func (s *InstrumentStore) GetBySymbolMarket(_ context.Context, symbol, market string) (*domain.Instrument, error) {
	symbol = domain.NormalizeCode(symbol)
	market = domain.NormalizeCode(market)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byPair[pairKey{symbol: symbol, market: market}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	instCopy := *s.byID[id]
	return &instCopy, nil
}

// List retrieves instruments ordered by ID with offset/limit pagination.
func (s *InstrumentStore) List(_ context.Context, activeOnly bool, offset, limit int) ([]*domain.Instrument, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.Instrument
	for _, inst := range s.byID {
		if activeOnly && !inst.IsActive {
			continue
		}
		instCopy := *inst
		all = append(all, &instCopy)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Deactivate flips the active flag off and bumps updated_at.
func (s *InstrumentStore) Deactivate(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, exists := s.byID[id]
	if !exists {
		return false, nil
	}
	inst.IsActive = false
	inst.UpdatedAt = time.Now().UTC()
	return true, nil
}
