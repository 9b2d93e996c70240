package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	pool *Pool
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

const instrumentColumns = `id, symbol, market, name, is_active, created_at, updated_at`

// ResolveOrCreate looks up an instrument by its normalized pair,
// creating it if absent. The uniqueness constraint on (symbol, market)
// makes this idempotent under concurrency: losers of the insert race
// catch the conflict and reread.
func (s *InstrumentStore) ResolveOrCreate(ctx context.Context, symbol, market, name string) (*domain.Instrument, error) {
	symbol = domain.NormalizeCode(symbol)
	market = domain.NormalizeCode(market)
	if symbol == "" || market == "" {
		return nil, storage.ErrInvalidInput
	}

	var inst *domain.Instrument
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		existing, err := s.lookup(ctx, conn, symbol, market)
		if err == nil {
			inst = existing
			return nil
		}
		if err != storage.ErrNotFound {
			return err
		}

		query := `
			INSERT INTO instruments (symbol, market, name)
			VALUES ($1, $2, $3)
			RETURNING ` + instrumentColumns

		var created domain.Instrument
		err = conn.QueryRow(ctx, query, symbol, market, name).Scan(
			&created.ID,
			&created.Symbol,
			&created.Market,
			&created.Name,
			&created.IsActive,
			&created.CreatedAt,
			&created.UpdatedAt,
		)
		if err == nil {
			inst = &created
			return nil
		}
		if !isDuplicateKeyError(err) {
			return fmt.Errorf("insert instrument: %w", err)
		}

		// Lost the insert race; the row exists now.
		existing, err = s.lookup(ctx, conn, symbol, market)
		if err != nil {
			return err
		}
		inst = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *InstrumentStore) lookup(ctx context.Context, conn *pgxpool.Conn, symbol, market string) (*domain.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE symbol = $1 AND market = $2
	`

	var inst domain.Instrument
	err := conn.QueryRow(ctx, query, symbol, market).Scan(
		&inst.ID,
		&inst.Symbol,
		&inst.Market,
		&inst.Name,
		&inst.IsActive,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instrument by pair: %w", err)
	}
	return &inst, nil
}

// GetByID retrieves an instrument by ID. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetByID(ctx context.Context, id int64) (*domain.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE id = $1
	`

	var inst domain.Instrument
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, query, id).Scan(
			&inst.ID,
			&inst.Symbol,
			&inst.Market,
			&inst.Name,
			&inst.IsActive,
			&inst.CreatedAt,
			&inst.UpdatedAt,
		)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("get instrument by id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetBySymbolMarket retrieves an instrument by its normalized pair.
func (s *InstrumentStore) GetBySymbolMarket(ctx context.Context, symbol, market string) (*domain.Instrument, error) {
	symbol = domain.NormalizeCode(symbol)
	market = domain.NormalizeCode(market)

	var inst *domain.Instrument
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		found, err := s.lookup(ctx, conn, symbol, market)
		if err != nil {
			return err
		}
		inst = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// List retrieves instruments ordered by ID with offset/limit pagination.
func (s *InstrumentStore) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Instrument, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE ($1::bool = false OR is_active)
		ORDER BY id
		OFFSET $2 LIMIT $3
	`

	var instruments []*domain.Instrument
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, activeOnly, offset, limit)
		if err != nil {
			return fmt.Errorf("list instruments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var inst domain.Instrument
			err := rows.Scan(
				&inst.ID,
				&inst.Symbol,
				&inst.Market,
				&inst.Name,
				&inst.IsActive,
				&inst.CreatedAt,
				&inst.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("scan instrument row: %w", err)
			}
			instruments = append(instruments, &inst)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate instrument rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instruments, nil
}

// Deactivate flips the active flag off and bumps updated_at.
// Returns false if the instrument is unknown.
func (s *InstrumentStore) Deactivate(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE instruments
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1
	`

	var deactivated bool
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id)
		if err != nil {
			return fmt.Errorf("deactivate instrument: %w", err)
		}
		deactivated = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deactivated, nil
}
