package service

import (
	"math"
	"time"
)

// Deposit policy types (settings.deposit_type).
const (
	DepositTypeFixed   = "fixed"
	DepositTypePercent = "percent"
)

// DepositPolicy is the organization's deposit settings slice the computation
// needs.
type DepositPolicy struct {
	Type    string
	Value   int64
	DueDays int
}

// DepositPlan is the computed deposit for a new appointment.
type DepositPlan struct {
	Required    bool
	AmountCents int64
	Status      string
	DueAt       *time.Time
	PaidAt      *time.Time
}

// ComputeDeposit derives the deposit terms for an appointment. A percent
// policy takes value as a percentage of the price, rounded to the nearest
// cent; a fixed policy takes value as the amount. An explicit override amount
// wins over the policy. The deposit is required when the caller asked for one
// or the computed amount is positive; a required positive deposit starts
// pending with a due date dueDays from now (clamped to at least today), or
// paid immediately when the caller collected it up front.
func ComputeDeposit(policy DepositPolicy, priceCents int64, explicitRequired, paidUpfront bool, overrideCents *int64, now time.Time) DepositPlan {
	var amount int64
	switch {
	case overrideCents != nil:
		amount = *overrideCents
	case policy.Type == DepositTypePercent:
		amount = int64(math.Round(float64(priceCents) * float64(policy.Value) / 100))
	default:
		amount = policy.Value
	}
	if amount < 0 {
		amount = 0
	}

	plan := DepositPlan{
		Required:    explicitRequired || amount > 0,
		AmountCents: amount,
		Status:      "none",
	}
	if amount == 0 {
		return plan
	}

	if paidUpfront {
		paid := now
		plan.Status = "paid"
		plan.PaidAt = &paid
		return plan
	}

	dueDays := policy.DueDays
	if dueDays < 0 {
		dueDays = 0
	}
	due := now.Add(time.Duration(dueDays) * 24 * time.Hour)
	plan.Status = "pending"
	plan.DueAt = &due
	return plan
}

// Overlaps reports whether two half-open intervals [s1, e1) and [s2, e2)
// overlap. Touching intervals do not.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
