// Package postgres implements the PostgreSQL persistence layer of the GPA
// tracker: conformance reports and their checks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnectionClosed is returned by every call made after Close.
	ErrConnectionClosed = errors.New("postgres: connection pool is closed")

	// ErrPoolExhausted means every pooled connection is checked out and
	// callers already had to wait for one.
	ErrPoolExhausted = errors.New("postgres: connection pool exhausted")

	// ErrMigrationFailed wraps errors from applying or rolling back a migration.
	ErrMigrationFailed = errors.New("postgres: migration failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// POOL OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// PoolOptions tune the pgx pool on top of the settings in the database URL.
// Zero fields leave whatever the URL (or pgx) chose.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// DefaultPoolOptions suits one API or worker process. Reports are written
// once per run and read rarely, so a small pool is enough.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}
}

// poolConfig parses the URL and applies the non-zero options.
func (o PoolOptions) poolConfig(databaseURL string) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if o.MaxConns > 0 {
		pc.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 {
		pc.MinConns = min(o.MinConns, pc.MaxConns)
	}
	if o.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = o.MaxConnLifetime
	}
	if o.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = o.MaxConnIdleTime
	}
	if o.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = o.HealthCheckPeriod
	}
	if o.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = o.ConnectTimeout
	}
	return pc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection owns the pgx pool shared by the report repository and the
// migrator.
type Connection struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	closed bool
}

// Open connects to databaseURL and pings the server once.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Connection, error) {
	pc, err := opts.poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// Close releases every pooled connection. Safe to call twice.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pool.Close()
}

func (c *Connection) usable() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	return nil
}

// PoolStatus is a snapshot of the pool taken by Status.
type PoolStatus struct {
	PingLatency       time.Duration
	TotalConns        int32
	IdleConns         int32
	AcquiredConns     int32
	MaxConns          int32
	EmptyAcquireCount int64
}

// Err reports a pool that cannot hand out a connection right now.
func (s PoolStatus) Err() error {
	if s.MaxConns > 0 && s.AcquiredConns >= s.MaxConns && s.EmptyAcquireCount > 0 {
		return fmt.Errorf("%w: %d of %d connections in use", ErrPoolExhausted, s.AcquiredConns, s.MaxConns)
	}
	return nil
}

// Status pings the server and reads the pool counters.
func (c *Connection) Status(ctx context.Context) (PoolStatus, error) {
	if err := c.usable(); err != nil {
		return PoolStatus{}, err
	}

	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return PoolStatus{}, fmt.Errorf("ping failed: %w", err)
	}

	stat := c.pool.Stat()
	return PoolStatus{
		PingLatency:       time.Since(start),
		TotalConns:        stat.TotalConns(),
		IdleConns:         stat.IdleConns(),
		AcquiredConns:     stat.AcquiredConns(),
		MaxConns:          stat.MaxConns(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
	}, nil
}

// Check reports whether the database is ready: the server answers and the
// pool still has room.
func (c *Connection) Check(ctx context.Context) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

var (
	writeTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

	// A report and its checks are read from one snapshot so a concurrent
	// Save cannot interleave.
	readTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

// WithTx runs fn in a read-write transaction.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return c.withTx(ctx, writeTxOptions, fn)
}

// WithReadTx runs fn in a read-only snapshot.
func (c *Connection) WithReadTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return c.withTx(ctx, readTxOptions, fn)
}

func (c *Connection) withTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	if err := c.usable(); err != nil {
		return err
	}

	tx, err := c.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exec runs a statement outside of a transaction.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := c.usable(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return c.pool.Exec(ctx, sql, args...)
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
