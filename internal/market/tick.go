// Package market advances instrument universes with an independent
// per-instrument stochastic process and keeps the latest snapshot of each
// universe available to readers.
package market

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

// Profile holds the random-walk parameters for one universe.
type Profile struct {
	// StayProbability is the per-tick chance an instrument does not move.
	StayProbability float64
	// Volatility is the maximum relative move per tick, by class.
	Volatility map[model.Class]float64
}

var (
	// Half the macro instruments move each tick.
	MacroProfile = Profile{
		StayProbability: 0.5,
		Volatility: map[model.Class]float64{
			model.ClassCrypto:    0.008,
			model.ClassForex:     0.001,
			model.ClassCommodity: 0.001,
		},
	}

	// Equities move on only 20% of ticks to bound the update volume of the
	// 5000-entry universe.
	EquityProfile = Profile{
		StayProbability: 0.8,
		Volatility: map[model.Class]float64{
			model.ClassEquity: 0.03,
		},
	}
)

// ProfileFor returns the default profile of a universe.
func ProfileFor(kind model.Kind) Profile {
	if kind == model.KindEquity {
		return EquityProfile
	}
	return MacroProfile
}

var (
	wholeUnitThreshold = decimal.NewFromInt(1000)
	minMacroPrice      = decimal.New(1, -2) // 0.01
	minEquityPrice     = decimal.NewFromInt(5)
	maxEquityPrice     = decimal.NewFromInt(15000)
	hundred            = decimal.NewFromInt(100)
)

// TickStats summarises one tick.
type TickStats struct {
	Moved int
	Up    int
	Down  int
}

// Tick returns the next snapshot of the universe. The input is not modified.
func Tick(snap model.Snapshot, rng *rand.Rand) model.Snapshot {
	next, _ := TickWithStats(snap, ProfileFor(snap.Kind), rng, time.Now().UTC())
	return next
}

// TickWithStats advances every instrument independently using the given
// profile and reports how many moved.
func TickWithStats(snap model.Snapshot, p Profile, rng *rand.Rand, at time.Time) (model.Snapshot, TickStats) {
	var stats TickStats
	out := make([]model.Instrument, len(snap.Instruments))
	for i, in := range snap.Instruments {
		if rng.Float64() < p.StayProbability {
			out[i] = in
			continue
		}
		moved := move(in, p.Volatility[in.Class], rng)
		switch moved.Trend {
		case model.TrendUp:
			stats.Up++
		case model.TrendDown:
			stats.Down++
		}
		stats.Moved++
		out[i] = moved
	}
	return snap.Next(at, out), stats
}

// move applies one multiplicative step in [1-vol, 1+vol]. PreviousPrice,
// ChangePercent and Trend are all taken against the pre-tick price.
func move(in model.Instrument, vol float64, rng *rand.Rand) model.Instrument {
	factor := decimal.NewFromFloat(1 - vol + rng.Float64()*2*vol)
	price := quantize(in.Class, in.Price.Mul(factor))

	prev := in.Price
	in.PreviousPrice = prev
	in.Price = price
	in.ChangePercent = price.Sub(prev).Div(prev).Mul(hundred).Round(2)
	switch price.Cmp(prev) {
	case 1:
		in.Trend = model.TrendUp
	case -1:
		in.Trend = model.TrendDown
	default:
		in.Trend = model.TrendNeutral
	}
	return in
}

// quantize applies the per-class price precision and bounds.
func quantize(class model.Class, price decimal.Decimal) decimal.Decimal {
	if class == model.ClassEquity {
		price = price.Floor()
		if price.LessThan(minEquityPrice) {
			return minEquityPrice
		}
		if price.GreaterThan(maxEquityPrice) {
			return maxEquityPrice
		}
		return price
	}

	if price.GreaterThan(wholeUnitThreshold) {
		price = price.Round(0)
	} else {
		price = price.Round(2)
	}
	if price.LessThan(minMacroPrice) {
		return minMacroPrice
	}
	return price
}
