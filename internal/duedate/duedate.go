// Package duedate computes when a pending payment becomes due under a
// student's payment terms.
package duedate

import "time"

// Policy is the due-date portion of a student's billing policy. At most one
// of the two fields is set; the policy-write boundary enforces that.
type Policy struct {
	DueDays       *int
	DueDayOfMonth *int
}

// Compute returns the due date for a payment anchored at reference.
//
// Day-of-month terms win over fixed-days terms. The candidate is the given
// day in the reference month (clamped to the month's length); when it does
// not fall strictly after the reference, terms roll to the next month. With
// neither field set the payment is due at the reference itself.
//
// Calendar arithmetic runs in the organization's timezone.
func Compute(reference time.Time, p Policy, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	ref := reference.In(loc)

	if p.DueDayOfMonth != nil {
		day := *p.DueDayOfMonth
		candidate := dateWithDay(ref.Year(), ref.Month(), day, loc)
		if !candidate.After(ref) {
			candidate = dateWithDay(ref.Year(), ref.Month()+1, day, loc)
		}
		return candidate
	}

	if p.DueDays != nil {
		return ref.AddDate(0, 0, *p.DueDays)
	}

	return ref
}

// dateWithDay builds midnight of the given day, clamping day to the month's
// last valid day instead of letting time.Date roll into the next month.
func dateWithDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}
