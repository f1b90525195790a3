package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/store"
	"github.com/shopspring/decimal"
)

// New returns an in-memory ledger seeded with the given balances.
func New(seed map[string]decimal.Decimal) core.LedgerStore {
	s := &ledgerStore{accounts: make(map[string]decimal.Decimal, len(seed))}
	for account, amount := range seed {
		s.accounts[account] = amount
		s.supply = s.supply.Add(amount)
	}

	return s
}

type ledgerStore struct {
	mux      sync.RWMutex
	accounts map[string]decimal.Decimal
	supply   decimal.Decimal
}

func (s *ledgerStore) Balance(_ context.Context, account string) (decimal.Decimal, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	v, ok := s.accounts[account]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", account, store.ErrNotFound)
	}

	return v, nil
}

func (s *ledgerStore) Supply(_ context.Context) (decimal.Decimal, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	return s.supply, nil
}

func (s *ledgerStore) Credit(_ context.Context, account string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit %s: non positive amount %s", account, amount)
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.accounts[account] = s.accounts[account].Add(amount)
	s.supply = s.supply.Add(amount)
	return nil
}

func (s *ledgerStore) Move(_ context.Context, from, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("move %s -> %s: non positive amount %s", from, to, amount)
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	balance, ok := s.accounts[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, store.ErrNotFound)
	}

	if balance.LessThan(amount) {
		return fmt.Errorf("%s has %s, want %s: %w", from, balance, amount, store.ErrInsufficientBalance)
	}

	s.accounts[from] = balance.Sub(amount)
	s.accounts[to] = s.accounts[to].Add(amount)
	return nil
}
