package main

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/catalog"
	"tradesim/internal/market"
	"tradesim/internal/model"
)

func catalogCmd() *cobra.Command {
	var (
		kind  string
		seed  int64
		count int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Generate a universe and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := generate(kind, seed, count)
			if err != nil {
				return err
			}
			shown := snap.Instruments
			if limit > 0 && limit < len(shown) {
				shown = shown[:limit]
			}
			fmt.Print(instrumentTable(fmt.Sprintf("%s universe (%d instruments, showing %d)", snap.Kind, snap.Len(), len(shown)), shown))
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "macro", "Universe: macro or equity")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time based)")
	cmd.Flags().IntVar(&count, "count", catalog.DefaultEquityCount, "Number of equities to generate")
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Rows to print (0 = all)")
	return cmd
}

func simulateCmd() *cobra.Command {
	var (
		kind  string
		seed  int64
		count int
		steps int
		top   int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Advance a universe offline and report the biggest movers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("steps must be positive, got %d", steps)
			}
			start, err := generate(kind, seed, count)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed + 1))
			profile := market.ProfileFor(start.Kind)
			at := time.Now().UTC()
			snap := start
			var total market.TickStats
			for i := 0; i < steps; i++ {
				at = at.Add(market.DefaultInterval)
				var stats market.TickStats
				snap, stats = market.TickWithStats(snap, profile, rng, at)
				total.Moved += stats.Moved
				total.Up += stats.Up
				total.Down += stats.Down
			}

			fmt.Printf("%s: %d steps, %d instruments, %d moves (%d up, %d down)\n\n",
				snap.Kind, steps, snap.Len(), total.Moved, total.Up, total.Down)
			fmt.Print(instrumentTable("Biggest movers since start", biggestMovers(start, snap, top)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "macro", "Universe: macro or equity")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time based)")
	cmd.Flags().IntVar(&count, "count", catalog.DefaultEquityCount, "Number of equities to generate")
	cmd.Flags().IntVar(&steps, "steps", 100, "Number of ticks")
	cmd.Flags().IntVar(&top, "top", 10, "Movers to print")
	return cmd
}

func generate(kind string, seed int64, count int) (model.Snapshot, error) {
	k, err := model.ParseKind(kind)
	if err != nil {
		return model.Snapshot{}, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return catalog.Generate(k, rand.New(rand.NewSource(seed)), catalog.WithEquityCount(count))
}

// biggestMovers returns the n instruments with the largest absolute change
// between two snapshots of the same universe, with ChangePercent and Trend
// restated against the first snapshot.
func biggestMovers(from, to model.Snapshot, n int) []model.Instrument {
	out := make([]model.Instrument, 0, to.Len())
	for _, in := range to.Instruments {
		base, ok := from.Lookup(in.Symbol)
		if !ok || base.Price.IsZero() {
			continue
		}
		in.PreviousPrice = base.Price
		in.ChangePercent = in.Price.Sub(base.Price).Div(base.Price).Shift(2).Round(2)
		switch in.Price.Cmp(base.Price) {
		case 1:
			in.Trend = model.TrendUp
		case -1:
			in.Trend = model.TrendDown
		default:
			in.Trend = model.TrendNeutral
		}
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangePercent.Abs().GreaterThan(out[j].ChangePercent.Abs())
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
