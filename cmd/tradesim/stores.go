package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	goredis "github.com/go-redis/redis/v8"

	"tradesim/config"
	"tradesim/internal/model"
	"tradesim/internal/store/memory"
	redisstore "tradesim/internal/store/redis"
	"tradesim/internal/store/sqlite"
)

// backend is the opened account store plus the handles the health checker
// and the snapshot publisher need.
type backend struct {
	store     model.AccountStore
	journal   *sqlite.Store
	sqlDB     *sql.DB
	rdb       *goredis.Client
	publisher *redisstore.SnapshotPublisher
}

func (b *backend) Close() {
	if err := b.store.Close(); err != nil {
		slog.Warn("close store failed", "error", err)
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite store opened", "path", cfg.SQLitePath)
		return &backend{store: st, journal: st, sqlDB: st.DB()}, nil

	case config.BackendRedis:
		rdb, err := redisstore.Dial(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			store:     redisstore.NewAccountStore(rdb, nil),
			rdb:       rdb,
			publisher: redisstore.NewSnapshotPublisher(rdb, nil, 0),
		}, nil
	}
	slog.Warn("using in-memory store; accounts are lost on exit")
	return &backend{store: memory.New()}, nil
}
