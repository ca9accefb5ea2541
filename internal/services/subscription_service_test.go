package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pocketwise/internal/core"
	"pocketwise/internal/lifecycle"
	"pocketwise/internal/ports"
	"pocketwise/internal/storage/memory"
)

func newSubscription(userID string, end core.Date) core.Subscription {
	return core.Subscription{
		UserID:       userID,
		Category:     "Streaming",
		ExternalID:   "netflix",
		Amount:       core.MustMoney("299"),
		BillingCycle: core.Monthly,
		StartDate:    core.NewDate(2025, time.January, 1),
		EndDate:      end,
		IsActive:     true,
	}
}

func TestSubscriptionService_CreateInsertsLinkedExpense(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewSubscriptionService(store, nil, nil, lifecycle.DefaultOptions())

	sub, tx, err := svc.Create(ctx, newSubscription("u1", core.NewDate(2026, time.January, 1)), now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	txs, err := store.ListTransactions(ctx, "u1", ports.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want exactly 1", len(txs))
	}
	got := txs[0]
	if got.ID != tx.ID || got.SubscriptionRef != sub.ID {
		t.Errorf("linked transaction = %+v, want ref %s", got, sub.ID)
	}
	if got.Type != core.Expense || !got.Amount.Equal(core.MustMoney("299")) {
		t.Errorf("linked transaction type/amount = %s/%s", got.Type, got.Amount)
	}
	if !got.Date.Equal(core.DateOf(now)) {
		t.Errorf("linked transaction date = %s, want %s", got.Date, core.DateOf(now))
	}
	if got.Category != "Streaming" {
		t.Errorf("category = %q", got.Category)
	}

	// Deleting the subscription leaves the expense alone.
	if err := svc.Delete(ctx, "u1", sub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	after, _ := store.ListTransactions(ctx, "u1", ports.TransactionFilter{})
	if len(after) != 1 || after[0].ID != got.ID || !after[0].Amount.Equal(got.Amount) {
		t.Errorf("transactions after delete = %+v", after)
	}
}

func TestSubscriptionService_UpdateDoesNotInsert(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewSubscriptionService(store, nil, nil, lifecycle.DefaultOptions())

	sub, _, err := svc.Create(ctx, newSubscription("u1", core.NewDate(2026, time.January, 1)), now)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	sub.Amount = core.MustMoney("499")
	if _, err := svc.Update(ctx, sub); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	txs, _ := store.ListTransactions(ctx, "u1", ports.TransactionFilter{})
	if len(txs) != 1 {
		t.Errorf("got %d transactions after update, want 1", len(txs))
	}
	stored, _ := store.GetSubscription(ctx, "u1", sub.ID)
	if !stored.Amount.Equal(core.MustMoney("499")) {
		t.Errorf("stored amount = %s", stored.Amount)
	}
}

func TestSubscriptionService_CreateValidation(t *testing.T) {
	svc := NewSubscriptionService(memory.New(), nil, nil, lifecycle.DefaultOptions())

	tests := []struct {
		name   string
		mutate func(*core.Subscription)
	}{
		{"end before start", func(s *core.Subscription) { s.EndDate = core.NewDate(2024, time.December, 31) }},
		{"zero amount", func(s *core.Subscription) { s.Amount = core.Zero }},
		{"unknown cycle", func(s *core.Subscription) { s.BillingCycle = "daily" }},
		{"missing category", func(s *core.Subscription) { s.Category = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSubscription("u1", core.NewDate(2026, time.January, 1))
			tt.mutate(&sub)
			if _, _, err := svc.Create(context.Background(), sub, now); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSubscriptionService_ListSweepsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := &recordingNotifier{}
	svc := NewSubscriptionService(store, notifier, nil, lifecycle.DefaultOptions())

	today := core.DateOf(now)
	expired, _, _ := svc.Create(ctx, newSubscription("u1", today.AddDays(-1)), now.AddDate(0, -1, 0))
	soon, _, _ := svc.Create(ctx, newSubscription("u1", today.AddDays(2)), now.AddDate(0, -1, 0))

	sweep, err := svc.List(ctx, "u1", now)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sweep.Alerts) != 2 {
		t.Fatalf("alerts = %+v, want 2", sweep.Alerts)
	}
	kinds := map[string]lifecycle.AlertKind{}
	for _, a := range sweep.Alerts {
		kinds[a.SubscriptionID] = a.Kind
	}
	if kinds[expired.ID] != lifecycle.Expired || kinds[soon.ID] != lifecycle.ExpiringSoon {
		t.Errorf("alert kinds = %v", kinds)
	}

	stored, _ := store.GetSubscription(ctx, "u1", expired.ID)
	if stored.IsActive {
		t.Error("expired subscription should be persisted as inactive")
	}
	if len(notifier.subscriptions) != 2 {
		t.Errorf("notified %d alerts, want 2", len(notifier.subscriptions))
	}

	// Second pass: the expired one is stable, only the warning repeats.
	again, err := svc.List(ctx, "u1", now)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, a := range again.Alerts {
		if a.Kind == lifecycle.Expired {
			t.Errorf("second sweep raised expired alert for %s", a.SubscriptionID)
		}
	}
}

func TestSubscriptionService_AlertFailureKeepsStateChange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := &recordingNotifier{err: errChannelDown}
	svc := NewSubscriptionService(store, notifier, nil, lifecycle.DefaultOptions())

	sub, _, _ := svc.Create(ctx, newSubscription("u1", core.DateOf(now).AddDays(-1)), now.AddDate(0, -1, 0))

	if _, err := svc.List(ctx, "u1", now); err != nil {
		t.Fatalf("List() error = %v, alert failures must not fail the sweep", err)
	}
	stored, _ := store.GetSubscription(ctx, "u1", sub.ID)
	if stored.IsActive {
		t.Error("state change must survive a failed alert")
	}
}

func TestSubscriptionService_ManualToggleRaisesNoAlert(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := &recordingNotifier{}
	svc := NewSubscriptionService(store, notifier, nil, lifecycle.DefaultOptions())

	sub, _, _ := svc.Create(ctx, newSubscription("u1", core.DateOf(now).AddDays(-10)), now.AddDate(0, -1, 0))
	if err := svc.SetActive(ctx, "u1", sub.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	// Reactivation is allowed even past the end date.
	if err := svc.SetActive(ctx, "u1", sub.ID, true); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if len(notifier.subscriptions) != 0 {
		t.Errorf("manual toggles raised %d alerts", len(notifier.subscriptions))
	}
}

func TestSubscriptionService_StoreUnavailable(t *testing.T) {
	store := memory.New()
	store.Fail = errors.New("connection refused")
	svc := NewSubscriptionService(store, nil, nil, lifecycle.DefaultOptions())

	_, err := svc.List(context.Background(), "u1", now)
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("List() error = %v, want ErrStoreUnavailable", err)
	}
}

// flakyStore fails selected operations on top of the memory store.
type flakyStore struct {
	*memory.Store
	failActive map[string]error
	failInsert error
	honorCtx   bool
}

func (s *flakyStore) SetSubscriptionActive(ctx context.Context, userID, id string, active bool) error {
	if err := s.failActive[id]; err != nil {
		return err
	}
	return s.Store.SetSubscriptionActive(ctx, userID, id, active)
}

func (s *flakyStore) InsertTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if s.failInsert != nil {
		return "", s.failInsert
	}
	return s.Store.InsertTransaction(ctx, tx)
}

func (s *flakyStore) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	if s.honorCtx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return s.Store.ListSubscriptions(ctx, userID)
}

func TestSubscriptionService_PartialApplyFailureStillAlertsPersisted(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(), failActive: map[string]error{}}
	notifier := &recordingNotifier{}
	svc := NewSubscriptionService(store, notifier, nil, lifecycle.DefaultOptions())

	yesterday := core.DateOf(now).AddDays(-1)
	a, _, err := svc.Create(ctx, newSubscription("u1", yesterday), now.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	b, _, err := svc.Create(ctx, newSubscription("u1", yesterday), now.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}
	blip := errors.New("store blip")
	store.failActive[b.ID] = blip

	if _, err := svc.List(ctx, "u1", now); !errors.Is(err, blip) {
		t.Fatalf("List() error = %v, want the apply failure", err)
	}
	if len(notifier.subscriptions) != 1 || notifier.subscriptions[0].SubscriptionID != a.ID {
		t.Fatalf("first sweep notified %+v, want one expired alert for %s", notifier.subscriptions, a.ID)
	}
	stored, _ := store.GetSubscription(ctx, "u1", b.ID)
	if !stored.IsActive {
		t.Fatal("failed change must leave b active")
	}

	delete(store.failActive, b.ID)
	sweep, err := svc.List(ctx, "u1", now)
	if err != nil {
		t.Fatalf("retry List() error = %v", err)
	}
	if len(sweep.Alerts) != 1 || sweep.Alerts[0].SubscriptionID != b.ID || sweep.Alerts[0].Kind != lifecycle.Expired {
		t.Fatalf("retry alerts = %+v, want one expired alert for %s", sweep.Alerts, b.ID)
	}

	perSub := map[string]int{}
	for _, al := range notifier.subscriptions {
		if al.Kind == lifecycle.Expired {
			perSub[al.SubscriptionID]++
		}
	}
	if perSub[a.ID] != 1 || perSub[b.ID] != 1 {
		t.Errorf("expired alerts per subscription = %v, want exactly one each", perSub)
	}
}

func TestSubscriptionService_SharedSweepIgnoresCallerCancellation(t *testing.T) {
	store := &flakyStore{Store: memory.New(), honorCtx: true}
	svc := NewSubscriptionService(store, nil, nil, lifecycle.DefaultOptions())
	if _, _, err := svc.Create(context.Background(), newSubscription("u1", core.NewDate(2026, time.January, 1)), now); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweep, err := svc.List(ctx, "u1", now)
	if err != nil {
		t.Fatalf("List() error = %v, want the sweep to run detached from the caller", err)
	}
	if len(sweep.Subscriptions) != 1 {
		t.Errorf("got %d subscriptions, want 1", len(sweep.Subscriptions))
	}
}

func TestSubscriptionService_CreateRemovesSubscriptionWhenLinkFails(t *testing.T) {
	ctx := context.Background()
	insertErr := errors.New("disk full")
	store := &flakyStore{Store: memory.New(), failInsert: insertErr}
	svc := NewSubscriptionService(store, nil, nil, lifecycle.DefaultOptions())

	if _, _, err := svc.Create(ctx, newSubscription("u1", core.NewDate(2026, time.January, 1)), now); !errors.Is(err, insertErr) {
		t.Fatalf("Create() error = %v, want %v", err, insertErr)
	}
	subs, err := store.ListSubscriptions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscription left behind without linked expense: %+v", subs)
	}
}
