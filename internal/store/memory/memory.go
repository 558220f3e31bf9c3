// Package memory is an in-process AccountStore for tests and single-node
// sessions. Accounts are deep-copied on the way in and out.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tradesim/internal/model"
)

// Store keeps accounts in a map.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

// New returns an empty store.
func New() *Store {
	return &Store{accounts: make(map[string]*model.Account)}
}

func (s *Store) Load(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	acct, ok := s.accounts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", id, model.ErrAccountNotFound)
	}
	out := acct.Clone()
	if err := out.Verify(); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, acct *model.Account) error {
	if acct.ID == "" {
		return fmt.Errorf("memory: save account with empty id")
	}
	s.mu.Lock()
	s.accounts[acct.ID] = acct.Clone()
	s.mu.Unlock()
	return nil
}

// IDs lists stored account ids in no particular order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) Close() error { return nil }
