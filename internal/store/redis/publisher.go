package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradesim/internal/model"
)

const (
	defaultLatestTTL = 30 * time.Minute
	tickStreamMaxLen = 10000
)

// SnapshotPublisher mirrors every market snapshot to Redis:
//
//	SET     market:<kind>:latest   full snapshot JSON, with TTL
//	XADD    stream:market:<kind>   seq/at/size summary, trimmed
//	PUBLISH pub:market:<kind>      full snapshot JSON
type SnapshotPublisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration

	// OnDrop is called when a snapshot is skipped because the breaker is open.
	OnDrop func(kind model.Kind)
}

// NewSnapshotPublisher wraps client. ttl <= 0 uses 30 minutes.
func NewSnapshotPublisher(client *goredis.Client, cb *CircuitBreaker, ttl time.Duration) *SnapshotPublisher {
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}
	if cb.IsFailure == nil {
		cb.IsFailure = func(err error) bool { return !errors.Is(err, goredis.Nil) }
	}
	return &SnapshotPublisher{client: client, cb: cb, ttl: ttl}
}

// Breaker returns the publisher's circuit breaker.
func (p *SnapshotPublisher) Breaker() *CircuitBreaker { return p.cb }

// PublishSnapshot implements model.SnapshotSink. While the breaker is open
// snapshots are dropped; the next one after recovery supersedes them.
func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, snap model.Snapshot) error {
	data := snap.JSON()
	err := p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, latestKey(snap.Kind), data, p.ttl)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: tickStream(snap.Kind),
			MaxLen: tickStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"seq":  snap.Seq,
				"at":   snap.At.UnixMilli(),
				"size": snap.Len(),
			},
		})
		pipe.Publish(ctx, marketChannel(snap.Kind), data)
		_, err := pipe.Exec(ctx)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		if p.OnDrop != nil {
			p.OnDrop(snap.Kind)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis publish %s snapshot %d: %w", snap.Kind, snap.Seq, err)
	}
	return nil
}

// LatestSnapshot reads back the most recently published snapshot of kind.
func (p *SnapshotPublisher) LatestSnapshot(ctx context.Context, kind model.Kind) (model.Snapshot, error) {
	var snap model.Snapshot
	err := p.cb.Execute(func() error {
		data, err := p.client.Get(ctx, latestKey(kind)).Bytes()
		if err != nil {
			return err
		}
		return snap.UnmarshalJSON(data)
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("redis latest %s snapshot: %w", kind, err)
	}
	return snap, nil
}

var _ model.SnapshotSink = (*SnapshotPublisher)(nil)
