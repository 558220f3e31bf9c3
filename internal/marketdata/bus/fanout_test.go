package bus

import (
	"testing"
	"time"

	"tradesim/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	fo.Publish(model.Snapshot{Kind: model.KindMacro, Seq: 7})

	select {
	case s := <-out1:
		if s.Seq != 7 {
			t.Errorf("out1: expected seq 7, got %d", s.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for snapshot")
	}

	select {
	case s := <-out2:
		if s.Kind != model.KindMacro {
			t.Errorf("out2: expected MACRO, got %s", s.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for snapshot")
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New(1)
	_ = fo.Subscribe()

	var drops []int
	fo.OnDrop = func(idx int) { drops = append(drops, idx) }

	fo.Publish(model.Snapshot{Seq: 1})
	fo.Publish(model.Snapshot{Seq: 2})
	fo.Publish(model.Snapshot{Seq: 3})

	if len(drops) != 2 {
		t.Fatalf("expected 2 drops, got %d", len(drops))
	}
	if stats := fo.ChannelStats(); stats[0].Len != 1 || stats[0].Cap != 1 {
		t.Errorf("expected full channel 1/1, got %+v", stats[0])
	}
}

func TestFanOut_CloseClosesSubscribers(t *testing.T) {
	fo := New(4)
	out := fo.Subscribe()
	fo.Close()
	fo.Publish(model.Snapshot{Seq: 1}) // ignored after close

	if _, ok := <-out; ok {
		t.Error("expected closed channel")
	}
	if _, ok := <-fo.Subscribe(); ok {
		t.Error("expected subscribe after close to return closed channel")
	}
}
