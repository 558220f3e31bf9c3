package market

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"tradesim/internal/catalog"
	"tradesim/internal/model"
)

type recordingSink struct {
	mu   sync.Mutex
	seqs []int64
	fail bool
}

func (s *recordingSink) PublishSnapshot(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, snap.Seq)
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

type countingObserver struct {
	mu         sync.Mutex
	ticks      int
	sinkErrors int
}

func (o *countingObserver) ObserveTick(model.Kind, TickStats, int, time.Duration) {
	o.mu.Lock()
	o.ticks++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveSinkError(model.Kind) {
	o.mu.Lock()
	o.sinkErrors++
	o.mu.Unlock()
}

func TestClock_StepPublishes(t *testing.T) {
	snap, _ := catalog.Macro()
	sink := &recordingSink{}
	obs := &countingObserver{}
	c := NewClock(snap, ClockConfig{
		Rand:     rand.New(rand.NewSource(1)),
		Sinks:    []model.SnapshotSink{sink},
		Observer: obs,
	})
	sub := c.Subscribe()

	next := c.Step(context.Background())
	if next.Seq != 1 || c.Latest().Seq != 1 {
		t.Fatalf("expected seq 1, got step=%d latest=%d", next.Seq, c.Latest().Seq)
	}
	select {
	case got := <-sub:
		if got.Seq != 1 {
			t.Errorf("subscriber got seq %d", got.Seq)
		}
	default:
		t.Error("subscriber received nothing")
	}
	if len(sink.seqs) != 1 || sink.seqs[0] != 1 {
		t.Errorf("sink got %v", sink.seqs)
	}
	if obs.ticks != 1 {
		t.Errorf("observer saw %d ticks", obs.ticks)
	}
}

func TestClock_SinkErrorDoesNotStopTick(t *testing.T) {
	snap, _ := catalog.Macro()
	obs := &countingObserver{}
	c := NewClock(snap, ClockConfig{
		Rand:     rand.New(rand.NewSource(1)),
		Sinks:    []model.SnapshotSink{&recordingSink{fail: true}},
		Observer: obs,
	})
	c.Step(context.Background())
	c.Step(context.Background())
	if c.Latest().Seq != 2 {
		t.Errorf("expected seq 2, got %d", c.Latest().Seq)
	}
	if obs.sinkErrors != 2 {
		t.Errorf("expected 2 sink errors, got %d", obs.sinkErrors)
	}
}

func TestClock_RunStopsOnCancel(t *testing.T) {
	snap, _ := catalog.Macro()
	c := NewClock(snap, ClockConfig{Interval: 5 * time.Millisecond, Rand: rand.New(rand.NewSource(2))})
	sub := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-sub:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick within 2s")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	for range sub {
	}
}

func TestClock_ConcurrentReaders(t *testing.T) {
	snap, _ := catalog.Macro()
	c := NewClock(snap, ClockConfig{Rand: rand.New(rand.NewSource(9))})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s := c.Latest()
				if s.Len() != catalog.MacroCount() {
					t.Errorf("reader saw %d instruments", s.Len())
					return
				}
				if _, ok := c.Lookup("USD"); !ok {
					t.Error("USD missing")
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		c.Step(context.Background())
	}
	wg.Wait()
}

func TestMarket_New(t *testing.T) {
	m, err := New(Config{EquityCount: 50, Seed: 42})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eq, ok := m.Latest(model.KindEquity)
	if !ok || eq.Len() != 50 {
		t.Fatalf("expected 50 equities, got %d (ok=%v)", eq.Len(), ok)
	}
	if _, ok := m.Lookup(model.KindMacro, "GOLD"); !ok {
		t.Error("GOLD missing from macro universe")
	}
	if _, ok := m.Lookup(model.Kind("BONDS"), "X"); ok {
		t.Error("expected lookup in unknown universe to fail")
	}
}
