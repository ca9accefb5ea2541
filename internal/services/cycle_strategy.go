// Package services orchestrates the core evaluators over the store ports.
//
// This file implements the Strategy Pattern for billing cycles. Cycles are
// informational: nothing renews automatically, but the dashboard shows when
// the next charge falls and what a subscription costs per month.
package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pocketwise/internal/core"
)

// CycleStepper is the strategy interface for one billing cycle.
type CycleStepper interface {
	// Step returns the charge date following from, anchored on start.
	Step(from, start core.Date) core.Date
	// PerMonth converts one charge into its monthly equivalent.
	PerMonth(amount core.Money) core.Money
}

type WeeklyStepper struct{}

func (WeeklyStepper) Step(from, _ core.Date) core.Date { return from.AddDays(7) }

// PerMonth uses 52 weeks spread over 12 months.
func (WeeklyStepper) PerMonth(amount core.Money) core.Money {
	return core.NewMoney(amount.Decimal().Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12)))
}

type MonthlyStepper struct{}

// Step keeps the start day of month, clamped to the month's last day
// (a subscription started on the 31st charges on Feb 28).
func (MonthlyStepper) Step(from, start core.Date) core.Date {
	next := core.MonthOf(from).AddMonths(1)
	return clampDay(next, start.Day())
}

func (MonthlyStepper) PerMonth(amount core.Money) core.Money { return amount }

type YearlyStepper struct{}

func (YearlyStepper) Step(from, start core.Date) core.Date {
	next := core.YearMonth{Year: from.Year() + 1, Month: start.Month()}
	return clampDay(next, start.Day())
}

func (YearlyStepper) PerMonth(amount core.Money) core.Money {
	return core.NewMoney(amount.Decimal().Div(decimal.NewFromInt(12)))
}

func clampDay(ym core.YearMonth, day int) core.Date {
	if last := ym.End().Day(); day > last {
		day = last
	}
	return core.NewDate(ym.Year, ym.Month, day)
}

var cycleSteppers = map[core.BillingCycle]CycleStepper{
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetCycleStepper returns the stepper for cycle.
func GetCycleStepper(cycle core.BillingCycle) (CycleStepper, error) {
	s, ok := cycleSteppers[cycle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidCycle, cycle)
	}
	return s, nil
}

// NextCharge returns the first charge date on or after today, or false when
// the subscription is inactive or ends before its next charge.
func NextCharge(sub core.Subscription, now time.Time) (core.Date, bool) {
	if !sub.IsActive {
		return core.Date{}, false
	}
	stepper, err := GetCycleStepper(sub.BillingCycle)
	if err != nil {
		return core.Date{}, false
	}
	today := core.DateOf(now)
	charge := sub.StartDate
	for charge.Before(today) {
		charge = stepper.Step(charge, sub.StartDate)
	}
	if charge.After(sub.EndDate) {
		return core.Date{}, false
	}
	return charge, true
}

// MonthlyCost sums the monthly equivalent of every active subscription.
func MonthlyCost(subs []core.Subscription) core.Money {
	total := core.Zero
	for _, sub := range subs {
		if !sub.IsActive {
			continue
		}
		stepper, err := GetCycleStepper(sub.BillingCycle)
		if err != nil {
			continue
		}
		total = total.Add(stepper.PerMonth(sub.Amount))
	}
	return total
}
