package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction adds to or removes from the balance.
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// Category records which operation produced a transaction.
type Category string

const (
	CategoryTrade         Category = "TRADE"
	CategoryDeposit       Category = "DEPOSIT"
	CategoryWithdrawal    Category = "WITHDRAWAL"
	CategoryAdReward      Category = "AD_REWARD"
	CategoryTaskReward    Category = "TASK_REWARD"
	CategoryDailyReward   Category = "DAILY_REWARD"
	CategoryReferralBonus Category = "REFERRAL_BONUS"
)

// ErrAccountNotFound is returned by stores when no account has the given id.
var ErrAccountNotFound = errors.New("account not found")

// Holding is a position in one instrument.
type Holding struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"` // denormalized at first purchase
	Kind        Kind            `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
}

// Cost returns quantity × average buy price.
func (h *Holding) Cost() decimal.Decimal {
	return h.Quantity.Mul(h.AvgBuyPrice)
}

// Transaction is an immutable ledger entry. Amount is always positive.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// Signed returns the amount with the sign of its direction.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Account is a user's cash balance, holdings and transaction history.
// Transactions are kept newest first.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	Holdings       []Holding       `json:"holdings"`
	Transactions   []Transaction   `json:"transactions"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewAccount returns an account funded with its opening bonus.
func NewAccount(id, name, currency string, opening decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:             id,
		Name:           name,
		Currency:       currency,
		OpeningBalance: opening,
		Balance:        opening,
		RealizedPnL:    decimal.Zero,
		Holdings:       []Holding{},
		Transactions:   []Transaction{},
		CreatedAt:      now,
	}
}

// Holding returns the index of the holding for symbol, or -1.
func (a *Account) Holding(symbol string) int {
	for i := range a.Holdings {
		if a.Holdings[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// Fold recomputes the balance from the opening balance and every transaction.
func (a *Account) Fold() decimal.Decimal {
	bal := a.OpeningBalance
	for i := range a.Transactions {
		bal = bal.Add(a.Transactions[i].Signed())
	}
	return bal
}

// Verify checks the account invariants: the balance equals the fold of its
// transactions, every holding is positive and unique by symbol, and every
// transaction carries a positive amount and a known direction.
func (a *Account) Verify() error {
	if a.ID == "" {
		return fmt.Errorf("account: empty id")
	}
	seen := make(map[string]bool, len(a.Holdings))
	for _, h := range a.Holdings {
		if seen[h.Symbol] {
			return fmt.Errorf("account %s: duplicate holding %s", a.ID, h.Symbol)
		}
		seen[h.Symbol] = true
		if !h.Quantity.IsPositive() {
			return fmt.Errorf("account %s: holding %s has quantity %s", a.ID, h.Symbol, h.Quantity)
		}
		if !h.AvgBuyPrice.IsPositive() {
			return fmt.Errorf("account %s: holding %s has average price %s", a.ID, h.Symbol, h.AvgBuyPrice)
		}
	}
	ids := make(map[string]bool, len(a.Transactions))
	for _, t := range a.Transactions {
		if ids[t.ID] {
			return fmt.Errorf("account %s: duplicate transaction %s", a.ID, t.ID)
		}
		ids[t.ID] = true
		if t.Direction != Credit && t.Direction != Debit {
			return fmt.Errorf("account %s: transaction %s has direction %q", a.ID, t.ID, t.Direction)
		}
		if !t.Amount.IsPositive() {
			return fmt.Errorf("account %s: transaction %s has amount %s", a.ID, t.ID, t.Amount)
		}
	}
	if fold := a.Fold(); !fold.Equal(a.Balance) {
		return fmt.Errorf("account %s: balance %s diverges from transaction fold %s", a.ID, a.Balance, fold)
	}
	return nil
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Holdings = append([]Holding{}, a.Holdings...)
	cp.Transactions = append([]Transaction{}, a.Transactions...)
	return &cp
}
