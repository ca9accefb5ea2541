package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pocketwise/internal/budget"
	"pocketwise/internal/cache"
	"pocketwise/internal/lifecycle"
	applog "pocketwise/internal/log"
	"pocketwise/internal/ports"
	"pocketwise/internal/services"
	sheetsmem "pocketwise/internal/sheets/memory"
	"pocketwise/internal/storage/memory"
)

var fixedNow = time.Date(2025, 10, 14, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	subs    []lifecycle.Alert
	budgets []budget.Alert
}

func (n *recordingNotifier) NotifySubscription(_ context.Context, a lifecycle.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, a)
	return nil
}

func (n *recordingNotifier) NotifyBudget(_ context.Context, a budget.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.budgets = append(n.budgets, a)
	return nil
}

type testEnv struct {
	srv      *Server
	store    *memory.Store
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, exporter ports.ReportExporter, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	views := cache.NewLRUCache[services.Trend](50, time.Minute)

	svc := Services{
		Transactions:  services.NewTransactionService(store, views),
		Analytics:     services.NewAnalyticsService(store, views, exporter),
		Subscriptions: services.NewSubscriptionService(store, notifier, views, lifecycle.DefaultOptions()),
		Budget:        services.NewBudgetService(store, notifier),
	}
	opts.Logger = applog.New(applog.Config{Output: io.Discard})
	opts.Clock = func() time.Time { return fixedNow }
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv, err := NewServer(":0", svc, opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := env.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	down := newTestEnv(t, nil, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	if rec := down.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		want   int
	}{
		{"missing user", http.MethodGet, "/api/wallet", "", "", http.StatusUnauthorized},
		{"negative amount", http.MethodPost, "/api/transactions", "u1", `{"amount":"-5","type":"expense","category":"Food"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/transactions", "u1", `{"amount":"0","type":"expense","category":"Food"}`, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/api/transactions", "u1", `{"amount":"5","type":"transfer","category":"Food"}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/transactions", "u1", `{"date":"2025-13-01","amount":"5","type":"expense","category":"Food"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transactions", "u1", `{"amount":"5","kind":"expense"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/wallet/topup", "u1", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/transactions?limit=abc", "u1", "", http.StatusBadRequest},
		{"bad granularity", http.MethodGet, "/api/analytics/groups?by=week", "u1", "", http.StatusBadRequest},
		{"trend window too large", http.MethodGet, "/api/analytics/trend?months=61", "u1", "", http.StatusBadRequest},
		{"delete unknown transaction", http.MethodDelete, "/api/transactions/nope", "u1", "", http.StatusNotFound},
		{"toggle unknown subscription", http.MethodPost, "/api/subscriptions/nope/active", "u1", `{"active":false}`, http.StatusNotFound},
		{"toggle without flag", http.MethodPost, "/api/subscriptions/nope/active", "u1", `{}`, http.StatusBadRequest},
		{"end before start", http.MethodPost, "/api/subscriptions", "u1", `{"category":"Media","external_id":"tv","amount":"9.99","billing_cycle":"monthly","start_date":"2025-10-10","end_date":"2025-10-01"}`, http.StatusBadRequest},
		{"bad budget month", http.MethodPut, "/api/budget", "u1", `{"month":"2025-13","amount":"10"}`, http.StatusBadRequest},
		{"export without exporter", http.MethodPost, "/api/analytics/export", "u1", "", http.StatusNotImplemented},
		{"wrong method", http.MethodPatch, "/api/wallet", "u1", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.user, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusMethodNotAllowed {
				if body := decode[errorBody](t, rec); body.Error == "" {
					t.Error("error body is empty")
				}
			}
		})
	}
}

func TestStoreUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.store.Fail = errors.New("disk on fire")

	rec := env.do(t, http.MethodGet, "/api/transactions", "u1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTransactionsAndWallet(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	rec := env.do(t, http.MethodPost, "/api/transactions", "u1",
		`{"date":"2025-10-02","category":"Food","subcategory":"Groceries","amount":"42.5","type":"expense","description":"market"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[transactionDTO](t, rec)
	if created.ID == "" || created.Amount != "42.50" || created.Date != "2025-10-02" {
		t.Errorf("created = %+v", created)
	}

	rec = env.do(t, http.MethodPost, "/api/wallet/topup", "u1", `{"amount":"100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("topup status = %d: %s", rec.Code, rec.Body.String())
	}
	topUp := decode[transactionDTO](t, rec)
	if topUp.Type != "income" || topUp.Subcategory != services.TopUpSubcategory || topUp.Date != "2025-10-14" {
		t.Errorf("top-up = %+v", topUp)
	}

	wallet := decode[walletDTO](t, env.do(t, http.MethodGet, "/api/wallet", "u1", ""))
	if wallet.Balance != "100.00" || wallet.Spend != "42.50" || wallet.Remaining != "57.50" {
		t.Errorf("wallet = %+v", wallet)
	}

	recent := decode[[]transactionDTO](t, env.do(t, http.MethodGet, "/api/transactions?limit=1", "u1", ""))
	if len(recent) != 1 {
		t.Fatalf("recent = %+v", recent)
	}

	// Other users see nothing.
	if other := decode[[]transactionDTO](t, env.do(t, http.MethodGet, "/api/transactions", "u2", "")); len(other) != 0 {
		t.Errorf("u2 sees %d transactions", len(other))
	}

	if rec := env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	wallet = decode[walletDTO](t, env.do(t, http.MethodGet, "/api/wallet", "u1", ""))
	if wallet.Spend != "0.00" {
		t.Errorf("spend after delete = %s", wallet.Spend)
	}
}

func TestAnalytics(t *testing.T) {
	exporter := sheetsmem.New()
	env := newTestEnv(t, exporter, Options{})

	for _, body := range []string{
		`{"date":"2025-08-03","category":"Salary","amount":"1000","type":"income"}`,
		`{"date":"2025-08-05","category":"Rent","amount":"400","type":"expense"}`,
		`{"date":"2025-10-01","category":"Food","amount":"30","type":"expense"}`,
		`{"date":"2025-10-03","category":"Rent","amount":"50","type":"expense"}`,
	} {
		if rec := env.do(t, http.MethodPost, "/api/transactions", "u1", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	trend := decode[trendDTO](t, env.do(t, http.MethodGet, "/api/analytics/trend", "u1", ""))
	if len(trend.Buckets) != services.DefaultTrendMonths {
		t.Fatalf("got %d buckets", len(trend.Buckets))
	}
	if trend.Buckets[0].Period != "2025-10-01" || trend.Buckets[2].Income != "1000.00" || trend.Buckets[2].Expense != "400.00" {
		t.Errorf("buckets = %+v", trend.Buckets)
	}
	if trend.Summary.TotalExpense != "480.00" {
		t.Errorf("summary = %+v", trend.Summary)
	}

	cats := decode[struct {
		Month      string        `json:"month"`
		Categories []categoryDTO `json:"categories"`
	}](t, env.do(t, http.MethodGet, "/api/analytics/categories", "u1", ""))
	if cats.Month != "2025-10" || len(cats.Categories) != 2 || cats.Categories[0].Name != "Rent" {
		t.Errorf("categories = %+v", cats)
	}

	groups := decode[[]bucketDTO](t, env.do(t, http.MethodGet, "/api/analytics/groups?by=year", "u1", ""))
	if len(groups) != 1 || groups[0].Net != "520.00" {
		t.Errorf("groups = %+v", groups)
	}

	rec := env.do(t, http.MethodPost, "/api/analytics/export?months=3", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if rows, ok := exporter.Report("u1"); !ok || len(rows) != 3 {
		t.Errorf("exported rows = %+v", rows)
	}
}

func TestSubscriptionFieldsAreSingleLine(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	rec := env.do(t, http.MethodPost, "/api/subscriptions", "u1",
		`{"category":"Media\r\n","external_id":"x\r\nBcc: victim@example.com","amount":"5","billing_cycle":"monthly","start_date":"2025-10-01","end_date":"2026-09-30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[createSubscriptionResponse](t, rec)
	if created.Subscription.ExternalID != "xBcc: victim@example.com" || created.Subscription.Category != "Media" {
		t.Errorf("subscription = %+v, want line breaks stripped", created.Subscription)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	rec := env.do(t, http.MethodPost, "/api/subscriptions", "u1",
		`{"category":"Media","external_id":"streaming","amount":"299","billing_cycle":"monthly","start_date":"2025-10-01","end_date":"2026-09-30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[createSubscriptionResponse](t, rec)
	if !created.Subscription.IsActive || created.Transaction.Amount != "299.00" ||
		created.Transaction.SubscriptionRef != created.Subscription.ID || created.Transaction.Type != "expense" {
		t.Errorf("created = %+v", created)
	}
	if created.Subscription.NextCharge != "2025-11-01" {
		t.Errorf("next charge = %q", created.Subscription.NextCharge)
	}

	rec = env.do(t, http.MethodPost, "/api/subscriptions", "u1",
		`{"category":"Gym","external_id":"club","amount":"20","billing_cycle":"monthly","start_date":"2025-09-01","end_date":"2025-10-13"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	gym := decode[createSubscriptionResponse](t, rec).Subscription

	list := decode[subscriptionListDTO](t, env.do(t, http.MethodGet, "/api/subscriptions", "u1", ""))
	if len(list.Subscriptions) != 2 || len(list.Alerts) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list.Alerts[0].SubscriptionID != gym.ID || list.Alerts[0].Kind != string(lifecycle.Expired) {
		t.Errorf("alert = %+v", list.Alerts[0])
	}
	if list.MonthlyCost != "299.00" {
		t.Errorf("monthly cost = %s", list.MonthlyCost)
	}
	if len(env.notifier.subs) != 1 {
		t.Errorf("notified %d subscription alerts", len(env.notifier.subs))
	}

	// A second sweep is quiet.
	list = decode[subscriptionListDTO](t, env.do(t, http.MethodGet, "/api/subscriptions", "u1", ""))
	if len(list.Alerts) != 0 {
		t.Errorf("second sweep alerts = %+v", list.Alerts)
	}

	rec = env.do(t, http.MethodPut, "/api/subscriptions/"+created.Subscription.ID, "u1",
		`{"category":"Media","external_id":"streaming-4k","amount":"399","billing_cycle":"yearly","start_date":"2025-10-01","end_date":"2026-09-30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decode[subscriptionDTO](t, rec); updated.Amount != "399.00" || updated.BillingCycle != "yearly" {
		t.Errorf("updated = %+v", updated)
	}

	if rec := env.do(t, http.MethodPost, "/api/subscriptions/"+created.Subscription.ID+"/active", "u1", `{"active":false}`); rec.Code != http.StatusNoContent {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/subscriptions/"+created.Subscription.ID, "u1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	// The linked expense survives the subscription.
	recent := decode[[]transactionDTO](t, env.do(t, http.MethodGet, "/api/transactions?limit=10", "u1", ""))
	found := false
	for _, tx := range recent {
		if tx.ID == created.Transaction.ID {
			found = true
		}
	}
	if !found {
		t.Error("linked transaction was removed with its subscription")
	}
}

func TestBudget(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	rec := env.do(t, http.MethodPut, "/api/budget", "u1", `{"amount":"5000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d: %s", rec.Code, rec.Body.String())
	}
	if set := decode[setBudgetRequest](t, rec); set.Month != "2025-10" || set.Amount != "5000.00" {
		t.Errorf("set = %+v", set)
	}

	env.do(t, http.MethodPost, "/api/transactions", "u1", `{"date":"2025-10-10","category":"Travel","amount":"5200","type":"expense"}`)

	st := decode[budgetDTO](t, env.do(t, http.MethodGet, "/api/budget", "u1", ""))
	if st.Alert == nil || st.Alert.OverBy != "200.00" || st.Remaining != "-200.00" {
		t.Fatalf("status = %+v", st)
	}
	if len(env.notifier.budgets) != 1 {
		t.Errorf("notified %d budget alerts", len(env.notifier.budgets))
	}

	env.do(t, http.MethodPut, "/api/budget", "u1", `{"month":"2025-10","amount":"0"}`)
	st = decode[budgetDTO](t, env.do(t, http.MethodGet, "/api/budget", "u1", ""))
	if st.Alert != nil || st.Limit != "0.00" {
		t.Errorf("cleared budget status = %+v", st)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, Options{RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodGet, "/api/wallet", "u1", "").Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if code := env.do(t, http.MethodGet, "/api/wallet", "u2", "").Code; code != http.StatusOK {
		t.Errorf("other user limited: %d", code)
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/wallet", bytes.NewReader(nil))
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "abc123" {
		t.Errorf("request id = %q", rec.Header().Get("X-Request-ID"))
	}
	if rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
