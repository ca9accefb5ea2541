package http

import (
	"fmt"
	"strings"
	"time"

	"pocketwise/internal/aggregate"
	"pocketwise/internal/budget"
	"pocketwise/internal/core"
	"pocketwise/internal/lifecycle"
	"pocketwise/internal/services"
)

// Amounts travel as decimal strings, dates as YYYY-MM-DD and months as YYYY-MM.

type transactionDTO struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Category        string    `json:"category"`
	Subcategory     string    `json:"subcategory"`
	Amount          string    `json:"amount"`
	Type            string    `json:"type"`
	Description     string    `json:"description,omitempty"`
	SubscriptionRef string    `json:"subscription_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:              tx.ID,
		Date:            tx.Date.String(),
		Category:        tx.Category,
		Subcategory:     tx.Subcategory,
		Amount:          tx.Amount.String(),
		Type:            string(tx.Type),
		Description:     tx.Description,
		SubscriptionRef: tx.SubscriptionRef,
		CreatedAt:       tx.CreatedAt,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx))
	}
	return out
}

type createTransactionRequest struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// toTransaction parses the request. An empty date means today.
func (req createTransactionRequest) toTransaction(userID string, now time.Time) (core.Transaction, error) {
	date := core.DateOf(now)
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		date = d
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		UserID:      userID,
		Date:        date,
		Category:    sanitizeInput(req.Category),
		Subcategory: sanitizeInput(req.Subcategory),
		Amount:      amount,
		Type:        typ,
		Description: sanitizeInput(req.Description),
		CreatedAt:   now,
	}, nil
}

type topUpRequest struct {
	Amount string `json:"amount"`
}

type walletDTO struct {
	Balance   string `json:"balance"`
	Spend     string `json:"spend"`
	Remaining string `json:"remaining"`
}

func toWalletDTO(w aggregate.Wallet) walletDTO {
	return walletDTO{Balance: w.Balance.String(), Spend: w.Spend.String(), Remaining: w.Remaining.String()}
}

type bucketDTO struct {
	Period      string `json:"period"`
	Granularity string `json:"granularity"`
	Label       string `json:"label"`
	Income      string `json:"income"`
	Expense     string `json:"expense"`
	Net         string `json:"net"`
}

func toBucketDTOs(buckets []aggregate.Bucket) []bucketDTO {
	out := make([]bucketDTO, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketDTO{
			Period:      b.Period.Start.String(),
			Granularity: string(b.Period.Granularity),
			Label:       b.Label(),
			Income:      b.Income.String(),
			Expense:     b.Expense.String(),
			Net:         b.Net.String(),
		})
	}
	return out
}

type summaryDTO struct {
	TotalIncome    string `json:"total_income"`
	TotalExpense   string `json:"total_expense"`
	AverageExpense string `json:"average_expense"`
	SavingsRate    string `json:"savings_rate"`
}

type trendDTO struct {
	Buckets  []bucketDTO `json:"buckets"`
	Summary  summaryDTO  `json:"summary"`
	Rejected int         `json:"rejected"`
}

func toTrendDTO(t services.Trend) trendDTO {
	return trendDTO{
		Buckets: toBucketDTOs(t.Buckets),
		Summary: summaryDTO{
			TotalIncome:    t.Summary.TotalIncome.String(),
			TotalExpense:   t.Summary.TotalExpense.String(),
			AverageExpense: t.Summary.AverageExpense.String(),
			SavingsRate:    t.Summary.SavingsRate.StringFixed(2),
		},
		Rejected: t.Rejected,
	}
}

type categoryDTO struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

func toCategoryDTOs(totals []aggregate.CategoryTotal) []categoryDTO {
	out := make([]categoryDTO, 0, len(totals))
	for _, c := range totals {
		out = append(out, categoryDTO{Name: c.Name, Amount: c.Amount.String()})
	}
	return out
}

type subscriptionDTO struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	ExternalID   string    `json:"external_id"`
	Amount       string    `json:"amount"`
	BillingCycle string    `json:"billing_cycle"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	NextCharge   string    `json:"next_charge,omitempty"`
}

func toSubscriptionDTO(sub core.Subscription, now time.Time) subscriptionDTO {
	dto := subscriptionDTO{
		ID:           sub.ID,
		Category:     sub.Category,
		ExternalID:   sub.ExternalID,
		Amount:       sub.Amount.String(),
		BillingCycle: string(sub.BillingCycle),
		StartDate:    sub.StartDate.String(),
		EndDate:      sub.EndDate.String(),
		IsActive:     sub.IsActive,
		CreatedAt:    sub.CreatedAt,
	}
	if next, ok := services.NextCharge(sub, now); ok {
		dto.NextCharge = next.String()
	}
	return dto
}

type subscriptionAlertDTO struct {
	SubscriptionID string `json:"subscription_id"`
	Kind           string `json:"kind"`
	DaysLeft       int    `json:"days_left"`
	EndDate        string `json:"end_date"`
	Message        string `json:"message"`
}

type subscriptionListDTO struct {
	Subscriptions []subscriptionDTO      `json:"subscriptions"`
	Alerts        []subscriptionAlertDTO `json:"alerts"`
	MonthlyCost   string                 `json:"monthly_cost"`
}

func toSubscriptionListDTO(sw services.Sweep, now time.Time) subscriptionListDTO {
	out := subscriptionListDTO{
		Subscriptions: make([]subscriptionDTO, 0, len(sw.Subscriptions)),
		Alerts:        make([]subscriptionAlertDTO, 0, len(sw.Alerts)),
		MonthlyCost:   services.MonthlyCost(sw.Subscriptions).String(),
	}
	for _, sub := range sw.Subscriptions {
		out.Subscriptions = append(out.Subscriptions, toSubscriptionDTO(sub, now))
	}
	for _, a := range sw.Alerts {
		out.Alerts = append(out.Alerts, toSubscriptionAlertDTO(a))
	}
	return out
}

func toSubscriptionAlertDTO(a lifecycle.Alert) subscriptionAlertDTO {
	return subscriptionAlertDTO{
		SubscriptionID: a.SubscriptionID,
		Kind:           string(a.Kind),
		DaysLeft:       a.DaysLeft,
		EndDate:        a.EndDate.String(),
		Message:        a.Message(),
	}
}

type subscriptionRequest struct {
	Category     string `json:"category"`
	ExternalID   string `json:"external_id"`
	Amount       string `json:"amount"`
	BillingCycle string `json:"billing_cycle"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	IsActive     *bool  `json:"is_active"`
}

// toSubscription parses the request. Omitted is_active means active.
func (req subscriptionRequest) toSubscription(userID string) (core.Subscription, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Subscription{}, err
	}
	cycle, err := core.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		return core.Subscription{}, err
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := core.ParseDate(req.EndDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("end_date: %w", err)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Subscription{
		UserID:       userID,
		Category:     sanitizeInput(req.Category),
		ExternalID:   sanitizeInput(req.ExternalID),
		Amount:       amount,
		BillingCycle: cycle,
		StartDate:    start,
		EndDate:      end,
		IsActive:     active,
	}, nil
}

type createSubscriptionResponse struct {
	Subscription subscriptionDTO `json:"subscription"`
	Transaction  transactionDTO  `json:"transaction"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type budgetAlertDTO struct {
	Spend  string `json:"spend"`
	Limit  string `json:"limit"`
	OverBy string `json:"over_by"`
}

type budgetDTO struct {
	Month     string          `json:"month"`
	Limit     string          `json:"limit"`
	Spend     string          `json:"spend"`
	Remaining string          `json:"remaining"`
	Alert     *budgetAlertDTO `json:"alert"`
}

func toBudgetDTO(st services.BudgetStatus) budgetDTO {
	return budgetDTO{
		Month:     st.Month.String(),
		Limit:     st.Limit.String(),
		Spend:     st.Spend.String(),
		Remaining: st.Remaining.String(),
		Alert:     toBudgetAlertDTO(st.Alert),
	}
}

func toBudgetAlertDTO(a *budget.Alert) *budgetAlertDTO {
	if a == nil {
		return nil
	}
	return &budgetAlertDTO{Spend: a.Spend.String(), Limit: a.Limit.String(), OverBy: a.OverBy.String()}
}

type setBudgetRequest struct {
	Month  string `json:"month"`
	Amount string `json:"amount"`
}
