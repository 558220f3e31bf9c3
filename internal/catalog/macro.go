package catalog

import (
	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

type macroSeed struct {
	symbol string
	name   string
	class  model.Class
	price  string // in the platform currency (PKR)
	flag   string
}

// Starting rates are quoted in the platform currency.
var macroSeeds = []macroSeed{
	{"USD", "US Dollar", model.ClassForex, "278.50", "🇺🇸"},
	{"EUR", "Euro", model.ClassForex, "301.20", "🇪🇺"},
	{"GBP", "British Pound", model.ClassForex, "352.80", "🇬🇧"},
	{"AED", "UAE Dirham", model.ClassForex, "75.85", "🇦🇪"},
	{"SAR", "Saudi Riyal", model.ClassForex, "74.20", "🇸🇦"},
	{"CNY", "Chinese Yuan", model.ClassForex, "38.50", "🇨🇳"},
	{"BTC", "Bitcoin", model.ClassCrypto, "17800000", "₿"},
	{"ETH", "Ethereum", model.ClassCrypto, "950000", "Ξ"},
	{"GOLD", "Gold (1 Tola)", model.ClassCommodity, "242000", "🪙"},
}

// MacroCount is the number of curated macro instruments.
func MacroCount() int { return len(macroSeeds) }

// Macro returns the curated macro universe in its initial state.
func Macro(opts ...Option) (model.Snapshot, error) {
	o := buildOptions(opts)
	insts := make([]model.Instrument, 0, len(macroSeeds))
	for _, s := range macroSeeds {
		in := model.NewInstrument(s.symbol, s.name, s.class, decimal.RequireFromString(s.price))
		in.Flag = s.flag
		insts = append(insts, in)
	}
	return model.NewSnapshot(model.KindMacro, 0, o.now().UTC(), insts)
}
