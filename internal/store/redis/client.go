// Package redis keeps accounts and the latest market snapshots in Redis.
// Every command runs behind a CircuitBreaker so that an unreachable server
// fails trades and publishes fast instead of stalling them.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradesim/internal/model"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Dial connects to Redis and pings the server.
func Dial(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	slog.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}

func accountKey(id string) string { return "account:" + id }

func accountChannel(id string) string { return "pub:account:" + id }

func latestKey(kind model.Kind) string { return "market:" + strings.ToLower(string(kind)) + ":latest" }

func marketChannel(kind model.Kind) string { return "pub:market:" + strings.ToLower(string(kind)) }

func tickStream(kind model.Kind) string { return "stream:market:" + strings.ToLower(string(kind)) }
