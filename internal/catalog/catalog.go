// Package catalog builds the instrument universes a simulation session
// trades against: a small curated macro set (FX, crypto, commodity) and a
// large procedurally generated equity set.
//
// Generation performs no I/O. Prices depend on the supplied random source;
// the shape of each universe (symbols per kind, cardinality) does not.
package catalog

import (
	"fmt"
	"math/rand"
	"time"

	"tradesim/internal/model"
)

// DefaultEquityCount is the size of the generated stock universe.
const DefaultEquityCount = 5000

type options struct {
	equityCount int
	now         func() time.Time
}

// Option customises generation.
type Option func(*options)

// WithEquityCount overrides the number of generated equities.
func WithEquityCount(n int) Option {
	return func(o *options) { o.equityCount = n }
}

// WithClock sets the timestamp source for the generated snapshot.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{equityCount: DefaultEquityCount, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Generate builds a fresh universe of the given kind.
func Generate(kind model.Kind, rng *rand.Rand, opts ...Option) (model.Snapshot, error) {
	switch kind {
	case model.KindMacro:
		return Macro(opts...)
	case model.KindEquity:
		return Equity(rng, opts...)
	}
	return model.Snapshot{}, fmt.Errorf("catalog: unknown kind %q", kind)
}
