package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pocketwise/internal/aggregate"
	"pocketwise/internal/cache"
	"pocketwise/internal/core"
	"pocketwise/internal/ports"
)

const (
	TopUpCategory    = "Income"
	TopUpSubcategory = "Wallet Top-up"
)

// TransactionService records and lists transactions. Every write drops the
// user's cached views.
type TransactionService struct {
	store ports.TransactionStore
	views cache.Cache[Trend]
}

func NewTransactionService(store ports.TransactionStore, views cache.Cache[Trend]) *TransactionService {
	return &TransactionService{store: store, views: views}
}

// Create validates tx, assigns its id and records it.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	id, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = id
	invalidateViews(ctx, s.views, tx.UserID)

	slog.InfoContext(ctx, "Transaction created",
		"id", tx.ID,
		"user_id", tx.UserID,
		"type", tx.Type,
		"category", tx.Category,
		"amount", tx.Amount.String())
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	invalidateViews(ctx, s.views, userID)
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

// TopUp records money added to the wallet as income dated today.
func (s *TransactionService) TopUp(ctx context.Context, userID string, amount core.Money, now time.Time) (core.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return s.Create(ctx, core.Transaction{
		UserID:      userID,
		Date:        core.DateOf(now),
		Category:    TopUpCategory,
		Subcategory: TopUpSubcategory,
		Amount:      amount,
		Type:        core.Income,
		Description: "Wallet top-up",
		CreatedAt:   now,
	})
}

// Recent returns the newest transactions by creation time.
func (s *TransactionService) Recent(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	txs, err := s.store.ListTransactions(ctx, userID, ports.TransactionFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return txs, nil
}

// Wallet returns lifetime balance, spend and remaining for userID.
func (s *TransactionService) Wallet(ctx context.Context, userID string) (aggregate.Wallet, error) {
	txs, err := s.store.ListTransactions(ctx, userID, ports.TransactionFilter{})
	if err != nil {
		return aggregate.Wallet{}, fmt.Errorf("list transactions: %w", err)
	}
	return aggregate.WalletOf(txs), nil
}

func viewPrefix(userID string) string { return userID + "|" }

func invalidateViews(ctx context.Context, views cache.Cache[Trend], userID string) {
	if views == nil {
		return
	}
	if n := views.DeletePrefix(viewPrefix(userID)); n > 0 {
		slog.DebugContext(ctx, "Invalidated cached views", "user_id", userID, "count", n)
	}
}
