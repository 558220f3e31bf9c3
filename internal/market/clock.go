package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/catalog"
	"tradesim/internal/marketdata/bus"
	"tradesim/internal/model"
)

// DefaultInterval is the tick cadence of every universe.
const DefaultInterval = 2 * time.Second

// Observer receives per-tick statistics (e.g. Prometheus metrics).
type Observer interface {
	ObserveTick(kind model.Kind, stats TickStats, universeSize int, took time.Duration)
	ObserveSinkError(kind model.Kind)
}

// ClockConfig configures a Clock.
type ClockConfig struct {
	// Interval between ticks. Defaults to DefaultInterval if zero.
	Interval time.Duration
	// Profile overrides the universe's default random-walk parameters.
	Profile *Profile
	// Rand is the clock's private random source. Defaults to a time seed.
	Rand *rand.Rand
	// BusBuffer is the per-subscriber channel size. Defaults to 4.
	BusBuffer int
	// Sinks receive every snapshot after it becomes the latest.
	Sinks []model.SnapshotSink
	// Observer is optional.
	Observer Observer
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *ClockConfig) defaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.BusBuffer == 0 {
		c.BusBuffer = 4
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Clock is the single writer of one universe. It replaces the latest
// snapshot atomically on every tick, so readers always see a complete
// universe and never a half-updated one.
type Clock struct {
	kind    model.Kind
	cfg     ClockConfig
	profile Profile

	mu     sync.Mutex // serializes ticks; guards cfg.Rand
	latest atomic.Pointer[model.Snapshot]
	bus    *bus.FanOut
}

// NewClock creates a clock seeded with the initial snapshot.
func NewClock(initial model.Snapshot, cfg ClockConfig) *Clock {
	cfg.defaults()
	c := &Clock{
		kind:    initial.Kind,
		cfg:     cfg,
		profile: ProfileFor(initial.Kind),
		bus:     bus.New(cfg.BusBuffer),
	}
	if cfg.Profile != nil {
		c.profile = *cfg.Profile
	}
	c.latest.Store(&initial)
	return c
}

// Kind returns the universe this clock drives.
func (c *Clock) Kind() model.Kind { return c.kind }

// Latest returns the current snapshot.
func (c *Clock) Latest() model.Snapshot { return *c.latest.Load() }

// Lookup finds an instrument in the current snapshot.
func (c *Clock) Lookup(symbol string) (model.Instrument, bool) {
	return c.latest.Load().Lookup(symbol)
}

// Subscribe returns a channel receiving every subsequent snapshot.
// Slow subscribers miss snapshots rather than blocking the clock.
func (c *Clock) Subscribe() <-chan model.Snapshot { return c.bus.Subscribe() }

// Step performs one tick immediately and returns the new snapshot.
func (c *Clock) Step(ctx context.Context) model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	cur := c.latest.Load()
	next, stats := TickWithStats(*cur, c.profile, c.cfg.Rand, c.cfg.Now().UTC())
	c.latest.Store(&next)
	took := time.Since(start)

	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveTick(c.kind, stats, next.Len(), took)
	}
	c.bus.Publish(next)
	for _, sink := range c.cfg.Sinks {
		if err := sink.PublishSnapshot(ctx, next); err != nil {
			slog.Warn("snapshot sink failed", "kind", c.kind, "seq", next.Seq, "error", err)
			if c.cfg.Observer != nil {
				c.cfg.Observer.ObserveSinkError(c.kind)
			}
		}
	}
	slog.Debug("market tick", "kind", c.kind, "seq", next.Seq,
		"moved", stats.Moved, "up", stats.Up, "down", stats.Down, "took", took)
	return next
}

// Run ticks every interval until ctx is cancelled, then closes the
// subscriber channels. The ticker is always stopped on return.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	defer c.bus.Close()

	slog.Info("market clock started", "kind", c.kind,
		"instruments", c.Latest().Len(), "interval", c.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("market clock stopped", "kind", c.kind, "seq", c.Latest().Seq)
			return
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Market groups the clocks of both universes for one simulation session.
type Market struct {
	clocks map[model.Kind]*Clock
}

// Config configures a Market.
type Config struct {
	Interval    time.Duration
	EquityCount int
	Seed        int64 // 0 picks a time-based seed
	Sinks       []model.SnapshotSink
	Observer    Observer
}

// New generates both universes and wraps each in a clock with its own
// random source.
func New(cfg Config) (*Market, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var opts []catalog.Option
	if cfg.EquityCount > 0 {
		opts = append(opts, catalog.WithEquityCount(cfg.EquityCount))
	}

	m := &Market{clocks: make(map[model.Kind]*Clock, 2)}
	for i, kind := range model.Kinds() {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		snap, err := catalog.Generate(kind, rng, opts...)
		if err != nil {
			return nil, fmt.Errorf("market: generate %s: %w", kind, err)
		}
		m.clocks[kind] = NewClock(snap, ClockConfig{
			Interval: cfg.Interval,
			Rand:     rng,
			Sinks:    cfg.Sinks,
			Observer: cfg.Observer,
		})
	}
	return m, nil
}

// Clock returns the clock of a universe.
func (m *Market) Clock(kind model.Kind) (*Clock, bool) {
	c, ok := m.clocks[kind]
	return c, ok
}

// Latest returns the current snapshot of a universe.
func (m *Market) Latest(kind model.Kind) (model.Snapshot, bool) {
	c, ok := m.clocks[kind]
	if !ok {
		return model.Snapshot{}, false
	}
	return c.Latest(), true
}

// Lookup finds an instrument in the current snapshot of a universe.
func (m *Market) Lookup(kind model.Kind, symbol string) (model.Instrument, bool) {
	c, ok := m.clocks[kind]
	if !ok {
		return model.Instrument{}, false
	}
	return c.Lookup(symbol)
}

// Run drives every clock until ctx is cancelled.
func (m *Market) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range m.clocks {
		wg.Add(1)
		go func(c *Clock) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}
	wg.Wait()
}
