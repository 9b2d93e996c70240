package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-series-engine/internal/storage"
)

func TestInstrumentStore_ResolveOrCreateIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstrumentStore(pool)
	ctx := context.Background()

	first, err := store.ResolveOrCreate(ctx, "btc", "usd", "Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "BTC", first.Symbol)
	assert.Equal(t, "USD", first.Market)
	assert.True(t, first.IsActive)
	assert.NotZero(t, first.CreatedAt)

	// Same pair in any case resolves to the same row.
	second, err := store.ResolveOrCreate(ctx, " BTC ", "Usd", "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Bitcoin", second.Name)

	// Same symbol on a different market is a distinct instrument.
	eur, err := store.ResolveOrCreate(ctx, "BTC", "EUR", "Bitcoin")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, eur.ID)
}

func TestInstrumentStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstrumentStore(pool)

	_, err := store.GetByID(context.Background(), 99999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInstrumentStore_GetBySymbolMarket(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstrumentStore(pool)
	ctx := context.Background()

	created, err := store.ResolveOrCreate(ctx, "ETH", "USD", "Ethereum")
	require.NoError(t, err)

	got, err := store.GetBySymbolMarket(ctx, "eth", "usd")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = store.GetBySymbolMarket(ctx, "NOPE", "USD")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInstrumentStore_Deactivate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstrumentStore(pool)
	ctx := context.Background()

	inst, err := store.ResolveOrCreate(ctx, "LTC", "USD", "Litecoin")
	require.NoError(t, err)

	ok, err := store.Deactivate(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	// Soft delete: created_at survives, updated_at moves.
	assert.Equal(t, inst.CreatedAt.UTC(), got.CreatedAt.UTC())
	assert.True(t, got.UpdatedAt.After(inst.UpdatedAt) || got.UpdatedAt.Equal(inst.UpdatedAt))

	ok, err = store.Deactivate(ctx, 99999)
	require.NoError(t, err)
	assert.False(t, ok, "unknown id must report false, not error")
}

func TestInstrumentStore_ListPagination(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstrumentStore(pool)
	ctx := context.Background()

	symbols := []string{"BTC", "ETH", "LTC", "XRP"}
	for _, s := range symbols {
		_, err := store.ResolveOrCreate(ctx, s, "USD", s)
		require.NoError(t, err)
	}
	inactive, err := store.GetBySymbolMarket(ctx, "XRP", "USD")
	require.NoError(t, err)
	_, err = store.Deactivate(ctx, inactive.ID)
	require.NoError(t, err)

	all, err := store.List(ctx, false, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := store.List(ctx, true, 0, 10)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	page, err := store.List(ctx, false, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "ETH", page[0].Symbol)
	assert.Equal(t, "LTC", page[1].Symbol)
}
