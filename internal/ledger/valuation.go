package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

// Quoter resolves the current instrument for a symbol in a universe.
// *market.Market satisfies it.
type Quoter interface {
	Lookup(kind model.Kind, symbol string) (model.Instrument, bool)
}

// SnapshotQuotes is a Quoter over fixed snapshots.
type SnapshotQuotes map[model.Kind]model.Snapshot

func (q SnapshotQuotes) Lookup(kind model.Kind, symbol string) (model.Instrument, bool) {
	snap, ok := q[kind]
	if !ok {
		return model.Instrument{}, false
	}
	return snap.Lookup(symbol)
}

// Position is one holding marked to market.
type Position struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Kind          model.Kind      `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgBuyPrice   decimal.Decimal `json:"avg_buy_price"`
	Price         decimal.Decimal `json:"price"`
	Cost          decimal.Decimal `json:"cost"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pct"`
	Stale         bool            `json:"stale,omitempty"` // no quote; valued at cost
}

// Valuation summarises an account at current prices.
type Valuation struct {
	AccountID     string          `json:"account_id"`
	Currency      string          `json:"currency"`
	Cash          decimal.Decimal `json:"cash"`
	Positions     []Position      `json:"positions"`
	Invested      decimal.Decimal `json:"invested"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	NetWorth      decimal.Decimal `json:"net_worth"`
}

// Value marks every holding to the quoted price. Holdings without a quote
// are valued at their cost basis and flagged stale.
func Value(acct *model.Account, quotes Quoter) Valuation {
	v := Valuation{
		AccountID:     acct.ID,
		Currency:      acct.Currency,
		Cash:          acct.Balance,
		Positions:     make([]Position, 0, len(acct.Holdings)),
		Invested:      decimal.Zero,
		HoldingsValue: decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   acct.RealizedPnL,
	}
	for _, h := range acct.Holdings {
		p := Position{
			Symbol:      h.Symbol,
			Name:        h.Name,
			Kind:        h.Kind,
			Quantity:    h.Quantity,
			AvgBuyPrice: h.AvgBuyPrice,
			Price:       h.AvgBuyPrice,
			Cost:        h.Cost(),
		}
		if inst, ok := quotes.Lookup(h.Kind, h.Symbol); ok {
			p.Price = inst.Price
		} else {
			p.Stale = true
		}
		p.MarketValue = h.Quantity.Mul(p.Price)
		p.UnrealizedPnL = p.MarketValue.Sub(p.Cost)
		p.UnrealizedPct = decimal.Zero
		if p.Cost.IsPositive() {
			p.UnrealizedPct = p.UnrealizedPnL.Div(p.Cost).Mul(hundred).Round(2)
		}

		v.Invested = v.Invested.Add(p.Cost)
		v.HoldingsValue = v.HoldingsValue.Add(p.MarketValue)
		v.UnrealizedPnL = v.UnrealizedPnL.Add(p.UnrealizedPnL)
		v.Positions = append(v.Positions, p)
	}
	v.TotalPnL = v.UnrealizedPnL.Add(v.RealizedPnL)
	v.NetWorth = v.Cash.Add(v.HoldingsValue)
	return v
}

var hundred = decimal.NewFromInt(100)

// FormatAmount renders amount in currency with its symbol and minor units,
// e.g. "₨1,234.50". Unknown currencies fall back to a plain decimal.
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}
