package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// IndicatorStore implements storage.IndicatorStore using PostgreSQL.
type IndicatorStore struct {
	pool *Pool
}

// NewIndicatorStore creates a new IndicatorStore.
func NewIndicatorStore(pool *Pool) *IndicatorStore {
	return &IndicatorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IndicatorStore = (*IndicatorStore)(nil)

const indicatorColumns = `id, instrument_id, ts, indicator_type, indicator_name, value, parameters, created_at`

const insertIndicator = `
	INSERT INTO computed_indicators (instrument_id, ts, indicator_type, indicator_name, value, parameters)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Insert adds a single indicator value. Returns ErrDuplicateKey if
// (instrument_id, timestamp, type, parameters) exists.
func (s *IndicatorStore) Insert(ctx context.Context, ind *domain.ComputedIndicator) error {
	if ind == nil || ind.InstrumentID == 0 || ind.IndicatorType == "" {
		return storage.ErrInvalidInput
	}

	return s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, insertIndicator,
			ind.InstrumentID,
			ind.Timestamp,
			ind.IndicatorType,
			ind.IndicatorName,
			ind.Value,
			ind.Parameters,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert indicator: %w", err)
		}
		return nil
	})
}

// InsertBulk adds multiple indicator values atomically. Fails the entire
// batch on any duplicate.
func (s *IndicatorStore) InsertBulk(ctx context.Context, inds []*domain.ComputedIndicator) (int, error) {
	if len(inds) == 0 {
		return 0, nil
	}

	for _, ind := range inds {
		if ind == nil || ind.InstrumentID == 0 || ind.IndicatorType == "" {
			return 0, storage.ErrInvalidInput
		}
	}

	err := s.pool.withTx(ctx, func(tx pgx.Tx) error {
		for _, ind := range inds {
			_, err := tx.Exec(ctx, insertIndicator,
				ind.InstrumentID,
				ind.Timestamp,
				ind.IndicatorType,
				ind.IndicatorName,
				ind.Value,
				ind.Parameters,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert indicator in bulk: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(inds), nil
}

// GetLatest retrieves the n most recent values of one indicator type,
// ordered descending by timestamp.
func (s *IndicatorStore) GetLatest(ctx context.Context, instrumentID int64, indicatorType string, n int) ([]*domain.ComputedIndicator, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + indicatorColumns + `
		FROM computed_indicators
		WHERE instrument_id = $1 AND indicator_type = $2
		ORDER BY ts DESC
		LIMIT $3
	`

	return s.queryIndicators(ctx, query, instrumentID, indicatorType, n)
}

// GetByTypeRange retrieves values of one indicator type within
// [start, end] inclusive, ordered descending by timestamp.
func (s *IndicatorStore) GetByTypeRange(ctx context.Context, instrumentID int64, indicatorType string, start, end time.Time) ([]*domain.ComputedIndicator, error) {
	query := `
		SELECT ` + indicatorColumns + `
		FROM computed_indicators
		WHERE instrument_id = $1 AND indicator_type = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts DESC
	`

	return s.queryIndicators(ctx, query, instrumentID, indicatorType, start, end)
}

// DeleteByRange removes indicator values within [start, end] inclusive,
// optionally restricted to one type (empty means all types).
func (s *IndicatorStore) DeleteByRange(ctx context.Context, instrumentID int64, start, end time.Time, indicatorType string) (int64, error) {
	query := `
		DELETE FROM computed_indicators
		WHERE instrument_id = $1 AND ts >= $2 AND ts <= $3
		  AND ($4 = '' OR indicator_type = $4)
	`

	var deleted int64
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, instrumentID, start, end, indicatorType)
		if err != nil {
			return fmt.Errorf("delete indicators by range: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *IndicatorStore) queryIndicators(ctx context.Context, query string, args ...any) ([]*domain.ComputedIndicator, error) {
	var inds []*domain.ComputedIndicator
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query indicators: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ind domain.ComputedIndicator
			err := rows.Scan(
				&ind.ID,
				&ind.InstrumentID,
				&ind.Timestamp,
				&ind.IndicatorType,
				&ind.IndicatorName,
				&ind.Value,
				&ind.Parameters,
				&ind.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("scan indicator row: %w", err)
			}
			inds = append(inds, &ind)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate indicator rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inds, nil
}
