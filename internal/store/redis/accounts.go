package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradesim/internal/model"
)

// AccountStore is a model.AccountStore keeping each account as one JSON
// document at account:<id>. Every Save also publishes a short change
// notice on pub:account:<id>.
type AccountStore struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// AccountChange is the payload published after a save.
type AccountChange struct {
	ID           string    `json:"id"`
	Balance      string    `json:"balance"`
	Holdings     int       `json:"holdings"`
	Transactions int       `json:"transactions"`
	At           time.Time `json:"at"`
}

// NewAccountStore wraps client. A nil breaker gets a default one.
func NewAccountStore(client *goredis.Client, cb *CircuitBreaker) *AccountStore {
	if cb == nil {
		cb = NewCircuitBreaker(5, 10*time.Second)
	}
	if cb.IsFailure == nil {
		cb.IsFailure = func(err error) bool { return !errors.Is(err, goredis.Nil) }
	}
	return &AccountStore{client: client, cb: cb}
}

// Breaker exposes the circuit breaker for health reporting.
func (s *AccountStore) Breaker() *CircuitBreaker { return s.cb }

func (s *AccountStore) Load(ctx context.Context, id string) (*model.Account, error) {
	var data []byte
	err := s.cb.Execute(func() error {
		var err error
		data, err = s.client.Get(ctx, accountKey(id)).Bytes()
		return err
	})
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis: %s: %w", id, model.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", accountKey(id), err)
	}

	var acct model.Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("redis decode account %s: %w", id, err)
	}
	if err := acct.Verify(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &acct, nil
}

// Save writes the document and the change notice in one MULTI/EXEC.
func (s *AccountStore) Save(ctx context.Context, acct *model.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("redis encode account %s: %w", acct.ID, err)
	}
	notice, _ := json.Marshal(AccountChange{
		ID:           acct.ID,
		Balance:      acct.Balance.String(),
		Holdings:     len(acct.Holdings),
		Transactions: len(acct.Transactions),
		At:           time.Now().UTC(),
	})

	err = s.cb.Execute(func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, accountKey(acct.ID), data, 0)
			pipe.Publish(ctx, accountChannel(acct.ID), notice)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis save account %s: %w", acct.ID, err)
	}
	return nil
}

// Close closes the client.
func (s *AccountStore) Close() error {
	return s.client.Close()
}

var _ model.AccountStore = (*AccountStore)(nil)
