// Package account serializes ledger operations per account over an
// AccountStore: every call loads the account, applies one ledger operation
// and saves the result. A failed operation saves nothing.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesim/internal/ledger"
	"tradesim/internal/model"
	"tradesim/internal/notification"
)

// ErrAccountExists is returned by Open for an id already in the store.
var ErrAccountExists = errors.New("account already exists")

// Observer is notified of every ledger operation outcome.
type Observer interface {
	ObserveTrade(op string, kind model.Kind, err error)
}

// Config configures a Service.
type Config struct {
	Currency string
	// OpeningBalance funds new accounts. Zero means DefaultOpeningBalance;
	// negative values make Open fail.
	OpeningBalance decimal.Decimal
	Observer       Observer
	// Notifier receives deposits and withdrawals for operator review.
	Notifier notification.Notifier
	Now      func() time.Time
}

// DefaultOpeningBalance funds accounts when Config leaves OpeningBalance unset.
var DefaultOpeningBalance = decimal.NewFromInt(100)

// Service is the entry point for account mutations.
type Service struct {
	store  model.AccountStore
	quotes ledger.Quoter
	ledger *ledger.Ledger
	cfg    Config

	locks sync.Map // account id -> *sync.Mutex
}

// NewService wires a store, a price source and a ledger.
func NewService(store model.AccountStore, quotes ledger.Quoter, l *ledger.Ledger, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "PKR"
	}
	if cfg.OpeningBalance.IsZero() {
		cfg.OpeningBalance = DefaultOpeningBalance
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: store, quotes: quotes, ledger: l, cfg: cfg}
}

func (s *Service) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Open creates an account funded with the opening balance. An empty id
// gets a generated one.
func (s *Service) Open(ctx context.Context, id, name string) (*model.Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("open account: empty name")
	}
	if !s.cfg.OpeningBalance.IsPositive() {
		return nil, fmt.Errorf("open account: opening balance %s: %w", s.cfg.OpeningBalance, ledger.ErrInvalidQuantity)
	}
	defer s.lock(id)()

	if _, err := s.store.Load(ctx, id); err == nil {
		return nil, fmt.Errorf("open account %s: %w", id, ErrAccountExists)
	} else if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, fmt.Errorf("open account %s: %w", id, err)
	}

	acct := model.NewAccount(id, name, s.cfg.Currency, s.cfg.OpeningBalance, s.cfg.Now().UTC())
	if err := s.store.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("open account %s: %w", id, err)
	}
	slog.Info("account opened", "account", id, "opening_balance", acct.OpeningBalance.String())
	return acct, nil
}

// Get returns the stored account.
func (s *Service) Get(ctx context.Context, id string) (*model.Account, error) {
	acct, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acct, nil
}

// Buy purchases symbol from the kind universe at its current price.
func (s *Service) Buy(ctx context.Context, id string, kind model.Kind, symbol string, amountOrQty decimal.Decimal) (ledger.Delta, error) {
	return s.trade(ctx, "buy", id, kind, symbol, func(acct *model.Account, inst model.Instrument) (ledger.Delta, error) {
		return s.ledger.Buy(acct, inst, amountOrQty)
	})
}

// Sell disposes of up to qty units of symbol at its current price.
func (s *Service) Sell(ctx context.Context, id string, kind model.Kind, symbol string, qty decimal.Decimal) (ledger.Delta, error) {
	return s.trade(ctx, "sell", id, kind, symbol, func(acct *model.Account, inst model.Instrument) (ledger.Delta, error) {
		return s.ledger.Sell(acct, inst, qty)
	})
}

func (s *Service) trade(ctx context.Context, op, id string, kind model.Kind, symbol string,
	apply func(*model.Account, model.Instrument) (ledger.Delta, error)) (ledger.Delta, error) {
	delta, err := s.mutate(ctx, id, func(acct *model.Account) (ledger.Delta, error) {
		inst, ok := s.quotes.Lookup(kind, symbol)
		if !ok {
			return ledger.Delta{}, fmt.Errorf("%s %s/%s: %w", op, kind, symbol, ledger.ErrUnknownInstrument)
		}
		return apply(acct, inst)
	})
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTrade(op, kind, err)
	}
	if err != nil {
		return ledger.Delta{}, err
	}
	slog.Info("trade executed", "op", op, "account", id, "kind", kind, "symbol", symbol,
		"qty", delta.Quantity.String(), "price", delta.Price.String(), "amount", delta.Amount.String())
	return delta, nil
}

// Credit applies an external credit such as a reward or deposit.
func (s *Service) Credit(ctx context.Context, id string, req ledger.CreditRequest) (ledger.Delta, error) {
	delta, err := s.mutate(ctx, id, func(acct *model.Account) (ledger.Delta, error) {
		return req.Apply(s.ledger, acct)
	})
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTrade("credit", "", err)
	}
	if err == nil && req.Category == model.CategoryDeposit {
		s.notify(ctx, id, delta.Transaction)
	}
	return delta, err
}

// Withdraw debits a payout request.
func (s *Service) Withdraw(ctx context.Context, id string, amount decimal.Decimal, method string) (ledger.Delta, error) {
	delta, err := s.mutate(ctx, id, func(acct *model.Account) (ledger.Delta, error) {
		return s.ledger.Withdraw(acct, amount, method)
	})
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTrade("withdraw", "", err)
	}
	if err == nil {
		s.notify(ctx, id, delta.Transaction)
	}
	return delta, err
}

// notify reports a posted cash movement. Delivery failures are logged and
// never undo the operation.
func (s *Service) notify(ctx context.Context, id string, tx model.Transaction) {
	if s.cfg.Notifier == nil {
		return
	}
	if err := s.cfg.Notifier.Notify(ctx, notification.EventFor(id, s.cfg.Currency, tx)); err != nil {
		slog.Warn("account event delivery failed", "account", id, "category", tx.Category, "error", err)
	}
}

// Valuation marks the account to the current prices.
func (s *Service) Valuation(ctx context.Context, id string) (ledger.Valuation, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Valuation{}, err
	}
	return ledger.Value(acct, s.quotes), nil
}

// mutate runs fn on a freshly loaded account under the account's lock and
// saves the result only if fn succeeds.
func (s *Service) mutate(ctx context.Context, id string, fn func(*model.Account) (ledger.Delta, error)) (ledger.Delta, error) {
	defer s.lock(id)()

	acct, err := s.store.Load(ctx, id)
	if err != nil {
		return ledger.Delta{}, fmt.Errorf("load account %s: %w", id, err)
	}
	delta, err := fn(acct)
	if err != nil {
		return ledger.Delta{}, err
	}
	if err := s.store.Save(ctx, acct); err != nil {
		return ledger.Delta{}, fmt.Errorf("save account %s: %w", id, err)
	}
	return delta, nil
}
