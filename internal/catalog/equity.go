package catalog

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

var companyPrefixes = []string{
	"Meezan", "Al-Falah", "Takaful", "Barakah", "Ehsan", "Modaraba", "Shariah", "Halal", "Tayyab", "Unity",
	"Pioneer", "Summit", "Falcon", "Oasis", "Crescent", "Alpha", "Beta", "Omega", "Global", "Tech",
	"Future", "Smart", "Green", "Prime", "Star", "Cyber", "Quantum", "Hyper", "Mega", "Ultra",
	"Al-Habib", "Askari", "Faysal", "Dubai", "Emirates", "Gulf", "Saudi", "Pak", "Indus", "Mehran",
}

var companySuffixes = []string{
	"Bank", "Textiles", "Cement", "Foods", "Energy", "Petroleum", "Motors", "Chemicals", "Pharma",
	"Sugar", "Holdings", "Group", "Ltd", "Corp", "Systems", "Solutions", "Enterprises", "Industries",
	"Mills", "Engineering", "Power", "Gas", "Fertilizer", "Glass", "Papers", "Cables", "Network",
}

const (
	variantsPerName = 5

	// numbered suffix range of generated symbols, inclusive
	symbolNumMax = 999
	// redraws of the numbered suffix before a combination is skipped
	maxSymbolDraws = 32

	equityMinPrice   = 20
	equityMaxPrice   = 5000
	fallbackMinPrice = 10
	fallbackMaxPrice = 1000
)

// Equity generates the stock universe: every prefix/suffix/variant
// combination in order until the target count is reached, then generic
// TECH-<n> fillers if the combinations run out. Symbols are unique: a
// colliding numbered suffix is redrawn.
func Equity(rng *rand.Rand, opts ...Option) (model.Snapshot, error) {
	o := buildOptions(opts)
	if o.equityCount < 0 {
		return model.Snapshot{}, fmt.Errorf("catalog: negative equity count %d", o.equityCount)
	}
	n := o.equityCount
	insts := make([]model.Instrument, 0, n)
	used := make(map[string]bool, n)

combos:
	for _, prefix := range companyPrefixes {
		for _, suffix := range companySuffixes {
			for v := 1; v <= variantsPerName; v++ {
				if len(insts) >= n {
					break combos
				}
				sym, ok := drawSymbol(rng, symbolBase(prefix, suffix), used)
				if !ok {
					continue
				}
				name := prefix + " " + suffix
				if v > 1 {
					name += " " + strconv.Itoa(v)
				}
				price := randomPrice(rng, equityMinPrice, equityMaxPrice)
				insts = append(insts, model.NewInstrument(sym, name, model.ClassEquity, price))
			}
		}
	}

	for id := len(insts) + 1; len(insts) < n; id++ {
		sym := "TECH-" + strconv.Itoa(id)
		if used[sym] {
			continue
		}
		used[sym] = true
		name := "Islamic Tech Ventures " + strconv.Itoa(id)
		price := randomPrice(rng, fallbackMinPrice, fallbackMaxPrice)
		insts = append(insts, model.NewInstrument(sym, name, model.ClassEquity, price))
	}

	return model.NewSnapshot(model.KindEquity, 0, o.now().UTC(), insts)
}

// symbolBase is the first three letters of the prefix and the first letter
// of the suffix, upper-cased, e.g. "Meezan Bank" -> "MEEB".
func symbolBase(prefix, suffix string) string {
	p := prefix
	if len(p) > 3 {
		p = p[:3]
	}
	return strings.ToUpper(p + suffix[:1])
}

func drawSymbol(rng *rand.Rand, base string, used map[string]bool) (string, bool) {
	for i := 0; i < maxSymbolDraws; i++ {
		sym := base + "-" + strconv.Itoa(rng.Intn(symbolNumMax+1))
		if !used[sym] {
			used[sym] = true
			return sym, true
		}
	}
	return "", false
}

// randomPrice returns a uniform integer price in [lo, hi].
func randomPrice(rng *rand.Rand, lo, hi int) decimal.Decimal {
	return decimal.NewFromInt(int64(rng.Intn(hi-lo+1) + lo))
}
