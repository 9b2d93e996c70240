package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-series-engine/internal/storage"
)

// Hooks are optional instrumentation callbacks fired on pool events.
// They are observability, not part of the storage contract; any field
// may be nil.
type Hooks struct {
	OnConnect func()
	OnAcquire func()
	OnRelease func()
}

// Config holds pool construction settings.
type Config struct {
	DSN      string
	MinConns int32
	MaxConns int32

	// AcquireTimeout bounds how long a caller waits for a pooled
	// connection before failing fast with ErrPoolExhausted. Zero means
	// wait as long as the caller's context allows.
	AcquireTimeout time.Duration

	Hooks Hooks
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}

	hooks := cfg.Hooks
	if hooks.OnConnect != nil {
		pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			hooks.OnConnect()
			return nil
		}
	}
	if hooks.OnAcquire != nil {
		pc.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
			hooks.OnAcquire()
			return true
		}
	}
	if hooks.OnRelease != nil {
		pc.AfterRelease = func(conn *pgx.Conn) bool {
			hooks.OnRelease()
			return true
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool, acquireTimeout: cfg.AcquireTimeout}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// acquire checks a connection out of the pool, bounded by the configured
// acquire timeout. A timeout maps to ErrPoolExhausted unless the
// caller's own context expired first.
func (p *Pool) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.Pool.Acquire(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, storage.ErrPoolExhausted
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// withConn runs fn on a scoped pooled connection. The connection is
// released on every exit path, including error paths and caller
// cancellation.
func (p *Pool) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// withTx runs fn inside a transaction on a scoped connection:
// commit on success, rollback on failure.
func (p *Pool) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return p.withConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	// Use pgconn.PgError for reliable error code detection
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
