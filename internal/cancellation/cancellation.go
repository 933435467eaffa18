// Package cancellation decides whether a cancelled lesson carries a fee and
// tracks per-period cancellation allowances.
package cancellation

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeePolicy is the cancellation-fee portion of a student's billing policy.
type FeePolicy struct {
	Enabled        bool
	HoursThreshold *int
	FeePercent     *int
}

// FeeResult is the outcome of evaluating a cancellation against a policy.
type FeeResult struct {
	Applied bool  `json:"fee_applied"`
	Amount  int64 `json:"fee_amount"`
}

// EvaluateFee decides whether a fee applies to a cancellation and computes
// its amount in minor units, rounded half-up.
//
// A fee applies only when the cancellation lands inside the protected window:
// strictly less than HoursThreshold hours before the scheduled start, and not
// after the start. Cancelling exactly at the threshold is free; cancelling
// after the lesson started is a no-show and out of scope here.
func EvaluateFee(scheduledAt, cancelledAt time.Time, p FeePolicy, price int64) FeeResult {
	if !p.Enabled || p.HoursThreshold == nil || p.FeePercent == nil {
		return FeeResult{}
	}

	hoursBefore := scheduledAt.Sub(cancelledAt).Hours()
	if hoursBefore < 0 || hoursBefore >= float64(*p.HoursThreshold) {
		return FeeResult{}
	}

	amount := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(*p.FeePercent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	return FeeResult{Applied: true, Amount: amount}
}
