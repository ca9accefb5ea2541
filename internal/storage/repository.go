// Package storage is the SQLite backend of the store ports.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketwise/internal/core"
	"pocketwise/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteRepository)(nil)

// ErrDirtySchema means a previous migration stopped halfway and needs manual repair.
var ErrDirtySchema = errors.New("dirty database schema")

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, err := SchemaVersion(dbPath)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("%w: schema version %d is dirty", ErrDirtySchema, version)
	}
	slog.Info("Database ready", "path", dbPath, "schema_version", version)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

const transactionColumns = `id, user_id, date, category, subcategory, amount_cents, type, description, subscription_ref, created_at`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f ports.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx                 core.Transaction
			date, typ          string
			cents, createdNano int64
			ref                sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &date, &tx.Category, &tx.Subcategory,
			&cents, &typ, &tx.Description, &ref, &createdNano); err != nil {
			return nil, unavailable("scan transaction", err)
		}

		d, err := core.ParseDate(date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping transaction with unparseable date",
				"id", tx.ID, "date", date, "error", err)
			continue
		}
		tx.Date = d
		tx.Type = core.TransactionType(typ)
		tx.Amount = core.MoneyFromCents(cents)
		tx.SubscriptionRef = ref.String
		tx.CreatedAt = time.Unix(0, createdNano).UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate transactions", err)
	}

	slog.DebugContext(ctx, "Listed transactions", "user_id", userID, "count", len(txs),
		"from", f.From.String(), "to", f.To.String())
	return txs, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	var ref sql.NullString
	if tx.SubscriptionRef != "" {
		ref = sql.NullString{String: tx.SubscriptionRef, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tx.ID, tx.UserID, tx.Date.String(), tx.Category, tx.Subcategory,
		tx.Amount.Cents(), string(tx.Type), tx.Description, ref, tx.CreatedAt.UnixNano())
	if err != nil {
		return "", unavailable("insert transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"date", tx.Date.String())
	return tx.ID, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return unavailable("delete transaction", err)
	}
	return expectAffected(res, "transaction", id)
}

func expectAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

const subscriptionColumns = `id, user_id, category, external_id, amount_cents, billing_cycle, start_date, end_date, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (core.Subscription, error) {
	var (
		sub                core.Subscription
		cycle, start, end  string
		cents, createdNano int64
		active             bool
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Category, &sub.ExternalID, &cents,
		&cycle, &start, &end, &active, &createdNano); err != nil {
		return core.Subscription{}, err
	}

	var err error
	if sub.StartDate, err = core.ParseDate(start); err != nil {
		return core.Subscription{}, fmt.Errorf("start date: %w", err)
	}
	if sub.EndDate, err = core.ParseDate(end); err != nil {
		return core.Subscription{}, fmt.Errorf("end date: %w", err)
	}
	sub.Amount = core.MoneyFromCents(cents)
	sub.BillingCycle = core.BillingCycle(cycle)
	sub.IsActive = active
	sub.CreatedAt = time.Unix(0, createdNano).UTC()
	return sub, nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE user_id = ? ORDER BY end_date, id", userID)
	if err != nil {
		return nil, unavailable("list subscriptions", err)
	}
	defer rows.Close()

	var subs []core.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if errors.Is(err, core.ErrInvalidInput) {
			slog.WarnContext(ctx, "Skipping subscription with unparseable dates", "user_id", userID, "error", err)
			continue
		}
		if err != nil {
			return nil, unavailable("scan subscription", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate subscriptions", err)
	}
	return subs, nil
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE user_id = ? AND id = ?", userID, id)
	sub, err := scanSubscription(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	case errors.Is(err, core.ErrInvalidInput):
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, err)
	case err != nil:
		return core.Subscription{}, unavailable("get subscription", err)
	}
	return sub, nil
}

func (r *SQLiteRepository) UpsertSubscription(ctx context.Context, sub core.Subscription) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category      = excluded.category,
			external_id   = excluded.external_id,
			amount_cents  = excluded.amount_cents,
			billing_cycle = excluded.billing_cycle,
			start_date    = excluded.start_date,
			end_date      = excluded.end_date,
			is_active     = excluded.is_active
		WHERE subscriptions.user_id = excluded.user_id`,
		sub.ID, sub.UserID, sub.Category, sub.ExternalID, sub.Amount.Cents(),
		string(sub.BillingCycle), sub.StartDate.String(), sub.EndDate.String(),
		sub.IsActive, sub.CreatedAt.UnixNano())
	if err != nil {
		return "", unavailable("upsert subscription", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", sub.ID,
		"user_id", sub.UserID,
		"end_date", sub.EndDate.String(),
		"active", sub.IsActive)
	return sub.ID, nil
}

func (r *SQLiteRepository) SetSubscriptionActive(ctx context.Context, userID, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE subscriptions SET is_active = ? WHERE user_id = ? AND id = ?", active, userID, id)
	if err != nil {
		return unavailable("set subscription active", err)
	}
	return expectAffected(res, "subscription", id)
}

func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return unavailable("delete subscription", err)
	}
	return expectAffected(res, "subscription", id)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string, month core.YearMonth) (*core.Budget, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		"SELECT amount_cents FROM budgets WHERE user_id = ? AND month = ?", userID, month.String()).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get budget", err)
	}
	return &core.Budget{UserID: userID, Month: month, Amount: core.MoneyFromCents(cents)}, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID string, month core.YearMonth, amount core.Money) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, month, amount_cents) VALUES (?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE SET amount_cents = excluded.amount_cents`,
		userID, month.String(), amount.Cents())
	if err != nil {
		return unavailable("upsert budget", err)
	}

	slog.InfoContext(ctx, "Budget saved to SQLite", "user_id", userID, "month", month.String(), "amount", amount.String())
	return nil
}
