// Package notification delivers account cash-flow events (withdrawal
// requests, reported deposits) to an operator channel.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

// Event is one cash movement that an operator may need to act on.
type Event struct {
	AccountID   string          `json:"account_id"`
	Category    model.Category  `json:"category"`
	Direction   model.Direction `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	TxID        string          `json:"tx_id"`
	At          time.Time       `json:"at"`
}

// EventFor builds the event for a transaction posted to an account.
func EventFor(accountID, currency string, tx model.Transaction) Event {
	return Event{
		AccountID:   accountID,
		Category:    tx.Category,
		Direction:   tx.Direction,
		Amount:      tx.Amount,
		Currency:    currency,
		Description: tx.Description,
		TxID:        tx.ID,
		At:          tx.Date,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) error {
	slog.Info("account event", "account", ev.AccountID, "category", ev.Category,
		"amount", ev.Amount.String(), "currency", ev.Currency, "description", ev.Description)
	return nil
}
