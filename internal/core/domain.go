package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Weekly  BillingCycle = "weekly"
	Monthly BillingCycle = "monthly"
	Yearly  BillingCycle = "yearly"
)

type (
	TransactionType string

	BillingCycle string

	Transaction struct {
		ID              string
		UserID          string
		Date            Date
		Category        string
		Subcategory     string
		Amount          Money
		Type            TransactionType
		Description     string
		SubscriptionRef string // non-owning, empty when not linked
		CreatedAt       time.Time
	}

	Subscription struct {
		ID           string
		UserID       string
		Category     string
		ExternalID   string // user supplied label, not unique
		Amount       Money
		BillingCycle BillingCycle
		StartDate    Date
		EndDate      Date
		IsActive     bool
		CreatedAt    time.Time
	}

	Budget struct {
		UserID string
		Month  YearMonth
		Amount Money
	}
)

var (
	// ErrInvalidInput is the root of every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps failures of the persistence collaborator.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")

	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrInvalidMonth    = fmt.Errorf("%w: invalid month", ErrInvalidInput)
	ErrInvalidType     = fmt.Errorf("%w: invalid transaction type", ErrInvalidInput)
	ErrInvalidCycle    = fmt.Errorf("%w: invalid billing cycle", ErrInvalidInput)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrInvalidInput)
	ErrEmptyUser       = fmt.Errorf("%w: empty user id", ErrInvalidInput)
	ErrEndBeforeStart  = fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	ErrDescriptionSize = fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidInput)
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (c BillingCycle) Valid() bool {
	switch c {
	case Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func ParseBillingCycle(s string) (BillingCycle, error) {
	c := BillingCycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return c, nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(t.Description) > 200 {
		return ErrDescriptionSize
	}
	return nil
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if !s.BillingCycle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCycle, s.BillingCycle)
	}
	if err := s.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := s.EndDate.Validate(); err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if s.EndDate.Before(s.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// Validate allows a zero amount: a zero budget means "no budget set".
func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	if b.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// IsSet reports whether the budget carries a positive limit.
func (b *Budget) IsSet() bool {
	return b != nil && b.Amount.IsPositive()
}
