package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolManager hands out one shared *sql.DB, opening it on first use.
// Concurrent callers race through the atomic fast path; the mutex plus
// second check keeps the pool from being opened twice.
type PoolManager struct {
	dsn    string
	logger *slog.Logger

	mu sync.Mutex
	db atomic.Pointer[sql.DB]
}

func NewPoolManager(dsn string, logger *slog.Logger) *PoolManager {
	return &PoolManager{dsn: dsn, logger: logger}
}

func (p *PoolManager) Get(ctx context.Context) (*sql.DB, error) {
	if db := p.db.Load(); db != nil {
		return db, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if db := p.db.Load(); db != nil {
		return db, nil
	}

	db, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	p.logger.Info("postgres_pool_opened", "max_open_conns", 10)
	p.db.Store(db)
	return db, nil
}

// Close shuts the pool down. Safe to call more than once and before
// the pool was ever opened.
func (p *PoolManager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db := p.db.Load()
	if db == nil {
		return nil
	}
	p.db.Store(nil)
	return db.Close()
}

// DBProvider abstracts pool acquisition so stores can run against an
// already opened handle in tests.
type DBProvider interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// StaticPool wraps an existing handle.
type StaticPool struct {
	DB *sql.DB
}

func (s StaticPool) Get(context.Context) (*sql.DB, error) {
	return s.DB, nil
}
