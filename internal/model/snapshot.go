package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is an immutable view of one instrument universe at a point in
// time. A tick never mutates a Snapshot; it builds the next one.
type Snapshot struct {
	Kind        Kind         `json:"kind"`
	Seq         int64        `json:"seq"` // 0 for a freshly generated universe
	At          time.Time    `json:"at"`
	Instruments []Instrument `json:"instruments"`

	index map[string]int
}

// NewSnapshot builds a snapshot and its symbol index. It fails if two
// instruments share a symbol or an instrument is invalid.
func NewSnapshot(kind Kind, seq int64, at time.Time, instruments []Instrument) (Snapshot, error) {
	idx := make(map[string]int, len(instruments))
	for i := range instruments {
		if err := instruments[i].Validate(); err != nil {
			return Snapshot{}, err
		}
		if instruments[i].Kind() != kind {
			return Snapshot{}, fmt.Errorf("snapshot %s: instrument %s has class %s",
				kind, instruments[i].Symbol, instruments[i].Class)
		}
		if _, dup := idx[instruments[i].Symbol]; dup {
			return Snapshot{}, fmt.Errorf("snapshot %s: duplicate symbol %s", kind, instruments[i].Symbol)
		}
		idx[instruments[i].Symbol] = i
	}
	return Snapshot{Kind: kind, Seq: seq, At: at, Instruments: instruments, index: idx}, nil
}

// Next returns a snapshot sharing this one's symbol index but holding the
// given instruments, which must be in the same order.
func (s Snapshot) Next(at time.Time, instruments []Instrument) Snapshot {
	return Snapshot{Kind: s.Kind, Seq: s.Seq + 1, At: at, Instruments: instruments, index: s.index}
}

// Len returns the number of instruments.
func (s Snapshot) Len() int { return len(s.Instruments) }

// Lookup finds an instrument by symbol.
func (s Snapshot) Lookup(symbol string) (Instrument, bool) {
	if s.index == nil {
		for i := range s.Instruments {
			if s.Instruments[i].Symbol == symbol {
				return s.Instruments[i], true
			}
		}
		return Instrument{}, false
	}
	i, ok := s.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	return s.Instruments[i], true
}

// JSON returns the JSON-encoded snapshot (ignoring errors for hot-path usage).
func (s Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// UnmarshalJSON decodes a snapshot and rebuilds its symbol index.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	snap, err := NewSnapshot(p.Kind, p.Seq, p.At, p.Instruments)
	if err != nil {
		return err
	}
	*s = snap
	return nil
}
