package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-series-engine/internal/storage"
)

// maintenanceLockID serializes maintenance across processes via an
// advisory lock. Compression and retention must never touch the same
// chunk concurrently.
const maintenanceLockID = 815001

// ChunkMaintainer drives TimescaleDB chunk transitions on the
// price_points hypertable: open chunks past the compression age are
// compressed in place, chunks past the retention horizon are dropped.
// Both operations are non-blocking to concurrent reads and writes.
type ChunkMaintainer struct {
	pool *Pool
}

// NewChunkMaintainer creates a ChunkMaintainer over the given pool.
func NewChunkMaintainer(pool *Pool) *ChunkMaintainer {
	return &ChunkMaintainer{pool: pool}
}

// Compile-time interface check.
var _ storage.ChunkMaintainer = (*ChunkMaintainer)(nil)

// CompressEligible compresses every uncompressed chunk whose upper
// boundary is older than olderThan. Returns the number of chunks
// compressed. Query semantics are unaffected by compression state.
func (m *ChunkMaintainer) CompressEligible(ctx context.Context, olderThan time.Time) (int, error) {
	var compressed int
	err := m.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := acquireMaintenanceLock(ctx, conn); err != nil {
			return err
		}
		defer releaseMaintenanceLock(conn)

		rows, err := conn.Query(ctx, `
			SELECT format('%I.%I', chunk_schema, chunk_name)
			FROM timescaledb_information.chunks
			WHERE hypertable_name = 'price_points'
			  AND range_end <= $1
			  AND NOT is_compressed
			ORDER BY range_end
		`, olderThan)
		if err != nil {
			return fmt.Errorf("list compressible chunks: %w", err)
		}

		chunks, err := scanChunkNames(rows)
		if err != nil {
			return err
		}

		for _, chunk := range chunks {
			if _, err := conn.Exec(ctx, `SELECT compress_chunk($1::regclass)`, chunk); err != nil {
				return fmt.Errorf("compress chunk %s: %w", chunk, err)
			}
			compressed++
		}
		return nil
	})
	if err != nil {
		return compressed, err
	}
	return compressed, nil
}

// DropExpired retires every chunk whose upper boundary is older than
// olderThan and advances the retention watermark to the newest
// timestamp the dropped chunks covered. Retirement is irreversible.
func (m *ChunkMaintainer) DropExpired(ctx context.Context, olderThan time.Time) (int, error) {
	var dropped int
	err := m.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := acquireMaintenanceLock(ctx, conn); err != nil {
			return err
		}
		defer releaseMaintenanceLock(conn)

		// drop_chunks removes chunks with range_end <= older_than, so
		// the watermark is the newest range_end among them, not
		// olderThan itself: the chunk containing olderThan survives.
		var watermark *time.Time
		err := conn.QueryRow(ctx, `
			SELECT max(range_end)
			FROM timescaledb_information.chunks
			WHERE hypertable_name = 'price_points'
			  AND range_end <= $1
		`, olderThan).Scan(&watermark)
		if err != nil {
			return fmt.Errorf("find retention watermark: %w", err)
		}
		if watermark == nil {
			return nil // nothing eligible
		}

		// The watermark advances before the chunks go, so no committed
		// state ever has dropped chunks ahead of it. Appenders
		// share-lock the watermark row inside their insert transaction,
		// so this update waits out any in-flight write that read the old
		// value; such a write lands in the chunk while it still exists
		// and retires with it. If drop_chunks fails afterwards the
		// watermark is merely conservative and the next cycle retries.
		_, err = conn.Exec(ctx, `
			UPDATE retention_watermarks
			SET dropped_before = GREATEST(dropped_before, $1)
			WHERE relation = 'price_points'
		`, *watermark)
		if err != nil {
			return fmt.Errorf("advance retention watermark: %w", err)
		}

		rows, err := conn.Query(ctx,
			`SELECT drop_chunks('price_points', older_than => $1::timestamptz)`, olderThan)
		if err != nil {
			return fmt.Errorf("drop expired chunks: %w", err)
		}

		chunks, err := scanChunkNames(rows)
		if err != nil {
			return err
		}
		dropped = len(chunks)
		return nil
	})
	if err != nil {
		return dropped, err
	}
	return dropped, nil
}

func acquireMaintenanceLock(ctx context.Context, conn *pgxpool.Conn) error {
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, maintenanceLockID); err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	return nil
}

func releaseMaintenanceLock(conn *pgxpool.Conn) {
	// Release must not inherit a canceled caller context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, maintenanceLockID)
}

func scanChunkNames(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan chunk name: %w", err)
		}
		chunks = append(chunks, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}
