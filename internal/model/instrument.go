package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Class is the asset class of a tradeable instrument.
type Class string

const (
	ClassForex     Class = "FOREX"
	ClassCrypto    Class = "CRYPTO"
	ClassCommodity Class = "COMMODITY"
	ClassEquity    Class = "EQUITY"
)

// Trend is the direction of the last price move.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// Kind identifies one of the two independent instrument universes.
type Kind string

const (
	KindMacro  Kind = "MACRO"  // curated FX, crypto and commodity set
	KindEquity Kind = "EQUITY" // procedurally generated stocks
)

// ParseKind accepts "macro"/"equity" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindMacro:
		return KindMacro, nil
	case KindEquity:
		return KindEquity, nil
	}
	return "", fmt.Errorf("unknown universe kind %q", s)
}

// Kinds lists both universes in a stable order.
func Kinds() []Kind { return []Kind{KindMacro, KindEquity} }

// Instrument is a tradeable symbol with its latest simulated price.
// Symbol, Name, Class and Flag never change after generation; the price
// fields are replaced on every tick that moves the instrument.
type Instrument struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Class         Class           `json:"class"`
	Flag          string          `json:"flag,omitempty"`
	Price         decimal.Decimal `json:"price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Trend         Trend           `json:"trend"`
}

// Kind returns the universe the instrument belongs to.
func (i *Instrument) Kind() Kind {
	if i.Class == ClassEquity {
		return KindEquity
	}
	return KindMacro
}

// NewInstrument returns an instrument in its initial, unmoved state.
func NewInstrument(symbol, name string, class Class, price decimal.Decimal) Instrument {
	return Instrument{
		Symbol:        symbol,
		Name:          name,
		Class:         class,
		Price:         price,
		PreviousPrice: price,
		ChangePercent: decimal.Zero,
		Trend:         TrendNeutral,
	}
}

// Validate checks the identity fields and the positive-price invariant.
func (i *Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument: empty symbol")
	}
	switch i.Class {
	case ClassForex, ClassCrypto, ClassCommodity, ClassEquity:
	default:
		return fmt.Errorf("instrument %s: unknown class %q", i.Symbol, i.Class)
	}
	if !i.Price.IsPositive() {
		return fmt.Errorf("instrument %s: non-positive price %s", i.Symbol, i.Price)
	}
	return nil
}
