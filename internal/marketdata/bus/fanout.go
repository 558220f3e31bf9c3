package bus

import (
	"log/slog"
	"sync"

	"tradesim/internal/model"
)

// FanOut broadcasts snapshots to N subscriber channels.
// If a subscriber channel is full, the snapshot is dropped for that
// subscriber to prevent a slow consumer from blocking the market clock.
// Readers that fall behind only ever miss intermediate snapshots; the next
// one they receive is complete.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Snapshot
	bufSize int
	closed  bool

	// OnDrop is called when a snapshot is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel. Subscribing to a
// closed FanOut returns an already-closed channel.
func (f *FanOut) Subscribe() <-chan model.Snapshot {
	ch := make(chan model.Snapshot, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.outputs = append(f.outputs, ch)
	return ch
}

// Publish delivers snap to every subscriber without blocking.
func (f *FanOut) Publish(snap model.Snapshot) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for i, ch := range f.outputs {
		select {
		case ch <- snap:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				slog.Warn("bus subscriber full, dropping snapshot",
					"subscriber", i, "kind", snap.Kind, "seq", snap.Seq)
			}
		}
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}

// ChannelStat reports (length, capacity) of one subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Len int
	Cap int
}

func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
