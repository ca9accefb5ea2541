package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pocketwise/internal/aggregate"
	"pocketwise/internal/cache"
	"pocketwise/internal/core"
	"pocketwise/internal/ports"
)

// DefaultTrendMonths is the length of the dashboard trend chart.
const DefaultTrendMonths = 6

// MaxTrendMonths bounds caller-supplied windows.
const MaxTrendMonths = 60

var ErrNoExporter = errors.New("no report exporter configured")

// Trend is a fixed monthly window with its headline metrics.
type Trend struct {
	Buckets  []aggregate.Bucket
	Summary  aggregate.Summary
	Rejected int
}

type AnalyticsService struct {
	store    ports.TransactionStore
	views    cache.Cache[Trend]
	exporter ports.ReportExporter
}

// NewAnalyticsService builds the service. views and exporter may be nil.
func NewAnalyticsService(store ports.TransactionStore, views cache.Cache[Trend], exporter ports.ReportExporter) *AnalyticsService {
	return &AnalyticsService{store: store, views: views, exporter: exporter}
}

func trendKey(userID string, month core.YearMonth, n int) string {
	return fmt.Sprintf("%s%s|%d", viewPrefix(userID), month, n)
}

// Trend returns exactly months buckets ending with the month of now, most
// recent first.
func (s *AnalyticsService) Trend(ctx context.Context, userID string, now time.Time, months int) (Trend, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	if months > MaxTrendMonths {
		return Trend{}, fmt.Errorf("%w: window of %d months exceeds %d", core.ErrInvalidInput, months, MaxTrendMonths)
	}

	today := core.DateOf(now)
	current := core.MonthOf(today)
	key := trendKey(userID, current, months)
	if s.views != nil {
		if t, ok := s.views.Get(key); ok {
			return t, nil
		}
	}

	first := current.AddMonths(-(months - 1))
	txs, err := s.store.ListTransactions(ctx, userID, ports.TransactionFilter{From: first.Start(), To: current.End()})
	if err != nil {
		return Trend{}, fmt.Errorf("list transactions: %w", err)
	}

	buckets, rejected := aggregate.ByPeriod(txs, aggregate.Month, aggregate.LastMonths(today, months))
	logRejected(ctx, userID, rejected)

	t := Trend{Buckets: buckets, Summary: aggregate.Summarize(buckets), Rejected: len(rejected)}
	if s.views != nil {
		s.views.Set(key, t)
	}
	return t, nil
}

// Categories returns this month's expense totals, largest first.
func (s *AnalyticsService) Categories(ctx context.Context, userID string, now time.Time) ([]aggregate.CategoryTotal, error) {
	month := core.MonthOf(core.DateOf(now))
	txs, err := s.store.ListTransactions(ctx, userID, ports.TransactionFilter{Type: core.Expense}.Month(month))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	totals := aggregate.ByCategory(aggregate.ExpensesIn(txs, month))
	aggregate.SortByAmount(totals)
	return totals, nil
}

// Group buckets every transaction of userID by g, without a fixed window.
func (s *AnalyticsService) Group(ctx context.Context, userID string, g aggregate.Granularity) ([]aggregate.Bucket, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q", aggregate.ErrInvalidGranularity, g)
	}
	txs, err := s.store.ListTransactions(ctx, userID, ports.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	buckets, rejected := aggregate.ByPeriod(txs, g, nil)
	logRejected(ctx, userID, rejected)
	return buckets, nil
}

// Export writes the trend to the configured exporter and returns where it went.
func (s *AnalyticsService) Export(ctx context.Context, userID string, now time.Time, months int) (string, error) {
	if s.exporter == nil {
		return "", ErrNoExporter
	}
	t, err := s.Trend(ctx, userID, now, months)
	if err != nil {
		return "", err
	}

	rows := make([]ports.ReportRow, len(t.Buckets))
	for i, b := range t.Buckets {
		rows[i] = ports.ReportRow{Period: b.Label(), Income: b.Income, Expense: b.Expense, Net: b.Net}
	}
	location, err := s.exporter.ExportTrend(ctx, userID, rows)
	if err != nil {
		return "", fmt.Errorf("export trend: %w", err)
	}

	slog.InfoContext(ctx, "Trend exported", "user_id", userID, "rows", len(rows), "location", location)
	return location, nil
}

func logRejected(ctx context.Context, userID string, rejected []aggregate.Rejected) {
	for _, r := range rejected {
		slog.WarnContext(ctx, "Transaction excluded from aggregation",
			"user_id", userID, "id", r.ID, "error", r.Err)
	}
}
