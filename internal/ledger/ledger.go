// Package ledger applies trades and external credits to an account. Every
// operation validates first and only then touches the balance, the
// transaction list and the holdings, so a failed call leaves the account
// exactly as it was.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

// DefaultMinWithdrawal is the smallest amount Withdraw accepts.
var DefaultMinWithdrawal = decimal.NewFromInt(800)

// Delta describes the effect of one ledger operation.
type Delta struct {
	Symbol      string            `json:"symbol,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Amount      decimal.Decimal   `json:"amount"`
	Balance     decimal.Decimal   `json:"balance"`
	RealizedPnL decimal.Decimal   `json:"realized_pnl"`
	Closed      bool              `json:"closed,omitempty"` // holding removed
	Transaction model.Transaction `json:"transaction"`
}

// Ledger applies operations to accounts. It holds no account state; callers
// serialize access to each account.
type Ledger struct {
	now           func() time.Time
	newID         func() (string, error)
	minWithdrawal decimal.Decimal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs overrides the transaction id generator.
func WithIDs(gen func() (string, error)) Option {
	return func(l *Ledger) { l.newID = gen }
}

// WithMinWithdrawal sets the smallest accepted withdrawal.
func WithMinWithdrawal(amount decimal.Decimal) Option {
	return func(l *Ledger) { l.minWithdrawal = amount }
}

// New returns a Ledger using UUIDv7 transaction ids.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:           time.Now,
		newID:         newUUIDv7,
		minWithdrawal: DefaultMinWithdrawal,
	}
	for _, fn := range opts {
		fn(l)
	}
	return l
}

// MinWithdrawal returns the configured minimum.
func (l *Ledger) MinWithdrawal() decimal.Decimal { return l.minWithdrawal }

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var defaultLedger = New()

// Buy applies a purchase using the default ledger.
func Buy(acct *model.Account, inst model.Instrument, amountOrQty decimal.Decimal) (Delta, error) {
	return defaultLedger.Buy(acct, inst, amountOrQty)
}

// Sell applies a sale using the default ledger.
func Sell(acct *model.Account, inst model.Instrument, qty decimal.Decimal) (Delta, error) {
	return defaultLedger.Sell(acct, inst, qty)
}

// Buy purchases inst at its current price. For macro instruments
// amountOrQty is the cash to spend and the quantity is derived from it; for
// equities it is a whole number of shares.
func (l *Ledger) Buy(acct *model.Account, inst model.Instrument, amountOrQty decimal.Decimal) (Delta, error) {
	if !inst.Price.IsPositive() {
		return Delta{}, fmt.Errorf("buy %s: price %s: %w", inst.Symbol, inst.Price, ErrUnknownInstrument)
	}
	if !amountOrQty.IsPositive() {
		return Delta{}, fmt.Errorf("buy %s: %s: %w", inst.Symbol, amountOrQty, ErrInvalidQuantity)
	}

	var qty, cost decimal.Decimal
	desc := "Buy " + inst.Symbol
	if inst.Kind() == model.KindEquity {
		if !amountOrQty.IsInteger() {
			return Delta{}, fmt.Errorf("buy %s: fractional shares %s: %w", inst.Symbol, amountOrQty, ErrInvalidQuantity)
		}
		qty = amountOrQty
		cost = qty.Mul(inst.Price)
		desc = "Buy Stock " + inst.Symbol
	} else {
		cost = amountOrQty
		qty = cost.Div(inst.Price)
		if !qty.IsPositive() {
			return Delta{}, fmt.Errorf("buy %s: amount %s buys no units: %w", inst.Symbol, amountOrQty, ErrInvalidQuantity)
		}
	}

	if cost.GreaterThan(acct.Balance) {
		return Delta{}, fmt.Errorf("buy %s: cost %s, balance %s: %w", inst.Symbol, cost, acct.Balance, ErrInsufficientBalance)
	}
	tx, err := l.transaction(cost, model.Debit, model.CategoryTrade, desc)
	if err != nil {
		return Delta{}, fmt.Errorf("buy %s: %w", inst.Symbol, err)
	}

	acct.Balance = acct.Balance.Sub(cost)
	prepend(acct, tx)

	if i := acct.Holding(inst.Symbol); i >= 0 {
		h := &acct.Holdings[i]
		total := h.Quantity.Add(qty)
		h.AvgBuyPrice = h.Cost().Add(cost).Div(total)
		h.Quantity = total
	} else {
		acct.Holdings = append(acct.Holdings, model.Holding{
			Symbol:      inst.Symbol,
			Name:        inst.Name,
			Kind:        inst.Kind(),
			Quantity:    qty,
			AvgBuyPrice: inst.Price,
		})
	}

	return Delta{
		Symbol:      inst.Symbol,
		Quantity:    qty,
		Price:       inst.Price,
		Amount:      cost,
		Balance:     acct.Balance,
		RealizedPnL: decimal.Zero,
		Transaction: tx,
	}, nil
}

// Sell disposes of up to qty units of inst at its current price. Asking
// for more than is held sells the whole holding; revenue is paid only on
// the units actually sold.
func (l *Ledger) Sell(acct *model.Account, inst model.Instrument, qty decimal.Decimal) (Delta, error) {
	if !inst.Price.IsPositive() {
		return Delta{}, fmt.Errorf("sell %s: price %s: %w", inst.Symbol, inst.Price, ErrUnknownInstrument)
	}
	if !qty.IsPositive() {
		return Delta{}, fmt.Errorf("sell %s: %s: %w", inst.Symbol, qty, ErrInvalidQuantity)
	}
	equity := inst.Kind() == model.KindEquity
	if equity && !qty.IsInteger() {
		return Delta{}, fmt.Errorf("sell %s: fractional shares %s: %w", inst.Symbol, qty, ErrInvalidQuantity)
	}
	i := acct.Holding(inst.Symbol)
	if i < 0 {
		return Delta{}, fmt.Errorf("sell %s: %w", inst.Symbol, ErrNoPosition)
	}

	h := acct.Holdings[i]
	sold := decimal.Min(qty, h.Quantity)
	revenue := sold.Mul(inst.Price)
	realized := inst.Price.Sub(h.AvgBuyPrice).Mul(sold)

	desc := "Sell " + inst.Symbol
	if equity {
		desc = "Sell Stock " + inst.Symbol
	}
	tx, err := l.transaction(revenue, model.Credit, model.CategoryTrade, desc)
	if err != nil {
		return Delta{}, fmt.Errorf("sell %s: %w", inst.Symbol, err)
	}

	acct.Balance = acct.Balance.Add(revenue)
	acct.RealizedPnL = acct.RealizedPnL.Add(realized)
	prepend(acct, tx)

	closed := sold.Equal(h.Quantity)
	if closed {
		acct.Holdings = append(acct.Holdings[:i], acct.Holdings[i+1:]...)
	} else {
		acct.Holdings[i].Quantity = h.Quantity.Sub(sold)
	}

	return Delta{
		Symbol:      inst.Symbol,
		Quantity:    sold,
		Price:       inst.Price,
		Amount:      revenue,
		Balance:     acct.Balance,
		RealizedPnL: realized,
		Closed:      closed,
		Transaction: tx,
	}, nil
}

// Credit adds an external credit such as a deposit or a reward.
func (l *Ledger) Credit(acct *model.Account, category model.Category, amount decimal.Decimal, description string) (Delta, error) {
	switch category {
	case model.CategoryTrade, model.CategoryWithdrawal:
		return Delta{}, fmt.Errorf("credit: category %s is not an external credit", category)
	case "":
		return Delta{}, fmt.Errorf("credit: empty category")
	}
	if !amount.IsPositive() {
		return Delta{}, fmt.Errorf("credit %s: %s: %w", category, amount, ErrInvalidQuantity)
	}
	tx, err := l.transaction(amount, model.Credit, category, description)
	if err != nil {
		return Delta{}, fmt.Errorf("credit %s: %w", category, err)
	}
	acct.Balance = acct.Balance.Add(amount)
	prepend(acct, tx)
	return Delta{Amount: amount, Balance: acct.Balance, Transaction: tx}, nil
}

// Withdraw debits amount for payout through method.
func (l *Ledger) Withdraw(acct *model.Account, amount decimal.Decimal, method string) (Delta, error) {
	if !amount.IsPositive() {
		return Delta{}, fmt.Errorf("withdraw: %s: %w", amount, ErrInvalidQuantity)
	}
	if amount.LessThan(l.minWithdrawal) {
		return Delta{}, fmt.Errorf("withdraw: %s < %s: %w", amount, l.minWithdrawal, ErrBelowMinimum)
	}
	if amount.GreaterThan(acct.Balance) {
		return Delta{}, fmt.Errorf("withdraw: %s, balance %s: %w", amount, acct.Balance, ErrInsufficientBalance)
	}
	tx, err := l.transaction(amount, model.Debit, model.CategoryWithdrawal, "Withdraw: "+method)
	if err != nil {
		return Delta{}, fmt.Errorf("withdraw: %w", err)
	}
	acct.Balance = acct.Balance.Sub(amount)
	prepend(acct, tx)
	return Delta{Amount: amount, Balance: acct.Balance, Transaction: tx}, nil
}

func (l *Ledger) transaction(amount decimal.Decimal, dir model.Direction, cat model.Category, desc string) (model.Transaction, error) {
	id, err := l.newID()
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	return model.Transaction{
		ID:          id,
		Amount:      amount,
		Direction:   dir,
		Category:    cat,
		Description: desc,
		Date:        l.now().UTC(),
	}, nil
}

// prepend keeps the transaction list newest first.
func prepend(acct *model.Account, tx model.Transaction) {
	acct.Transactions = append(acct.Transactions, model.Transaction{})
	copy(acct.Transactions[1:], acct.Transactions)
	acct.Transactions[0] = tx
}
