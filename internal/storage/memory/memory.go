// Package memory is an in-process store used by the memory backend and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pocketwise/internal/core"
	"pocketwise/internal/ports"
)

type budgetKey struct {
	user  string
	month core.YearMonth
}

type Store struct {
	mu      sync.Mutex
	txs     map[string]core.Transaction
	subs    map[string]core.Subscription
	budgets map[budgetKey]core.Money

	// Fail, when set, is returned by every operation. Tests use it to
	// simulate an unreachable store.
	Fail error
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:     make(map[string]core.Transaction),
		subs:    make(map[string]core.Subscription),
		budgets: make(map[budgetKey]core.Money),
	}
}

func (s *Store) failure(op string) error {
	if s.Fail == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, s.Fail)
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("ping")
}

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context, userID string, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("list transactions"); err != nil {
		return nil, err
	}

	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID && f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert transaction"); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.txs[tx.ID] = tx
	return tx.ID, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("delete transaction"); err != nil {
		return err
	}
	tx, ok := s.txs[id]
	if !ok || tx.UserID != userID {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("list subscriptions"); err != nil {
		return nil, err
	}

	var out []core.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndDate.Equal(out[j].EndDate) {
			return out[i].EndDate.Before(out[j].EndDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetSubscription(_ context.Context, userID, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("get subscription"); err != nil {
		return core.Subscription{}, err
	}
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	return sub, nil
}

func (s *Store) UpsertSubscription(_ context.Context, sub core.Subscription) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("upsert subscription"); err != nil {
		return "", err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if prev, ok := s.subs[sub.ID]; ok {
		if prev.UserID != sub.UserID {
			return "", fmt.Errorf("subscription %s: %w", sub.ID, core.ErrNotFound)
		}
		sub.CreatedAt = prev.CreatedAt
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	s.subs[sub.ID] = sub
	return sub.ID, nil
}

func (s *Store) SetSubscriptionActive(_ context.Context, userID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("set subscription active"); err != nil {
		return err
	}
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	sub.IsActive = active
	s.subs[id] = sub
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("delete subscription"); err != nil {
		return err
	}
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	delete(s.subs, id)
	return nil
}

func (s *Store) GetBudget(_ context.Context, userID string, month core.YearMonth) (*core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("get budget"); err != nil {
		return nil, err
	}
	amount, ok := s.budgets[budgetKey{userID, month}]
	if !ok {
		return nil, nil
	}
	return &core.Budget{UserID: userID, Month: month, Amount: amount}, nil
}

func (s *Store) UpsertBudget(_ context.Context, userID string, month core.YearMonth, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("upsert budget"); err != nil {
		return err
	}
	s.budgets[budgetKey{userID, month}] = amount
	return nil
}
