package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

// Database is both a realtime store backed by the realtime_value table and
// the user/session repository.
type Database struct {
	pool   *pgxpool.Pool
	hub    *realtime.Hub
	logger *zap.Logger

	mu        sync.Mutex
	listening bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	db := &Database{
		pool:   pool,
		hub:    realtime.NewHub(),
		logger: zap.L(),
	}
	db.hub.OnFirst = db.onFirstSubscriber
	return db
}

// Connect opens a pool against databaseURL and checks it is reachable.
func Connect(ctx context.Context, databaseURL string) (*Database, error) {
	if err := config.Require("DATABASE_URL", databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewDatabase(pool), nil
}

// Open satisfies realtime.Opener.
func Open(ctx context.Context, cfg *config.BackendConfig) (realtime.Store, error) {
	return Connect(ctx, cfg.DatabaseURL)
}

func (db *Database) Close() error {
	db.mu.Lock()
	cancel, done := db.cancel, db.done
	db.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	db.hub.Close()
	db.pool.Close()
	return nil
}
