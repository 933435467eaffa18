package cancellation

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LimitPeriod is the calendar window a cancellation allowance applies to.
type LimitPeriod string

const (
	LimitPeriodMonth      LimitPeriod = "month"
	LimitPeriodQuarter    LimitPeriod = "quarter"
	LimitPeriodYear       LimitPeriod = "year"
	LimitPeriodEnrollment LimitPeriod = "enrollment"
)

func (p LimitPeriod) Valid() bool {
	switch p {
	case LimitPeriodMonth, LimitPeriodQuarter, LimitPeriodYear, LimitPeriodEnrollment:
		return true
	}
	return false
}

// LimitPolicy is the cancellation-count portion of a student's billing policy.
type LimitPolicy struct {
	Enabled bool
	Count   *int
	Period  LimitPeriod
}

// LimitResult reports the advisory cancellation allowance for a student.
// Remaining is nil when no limit is configured.
type LimitResult struct {
	CanCancel bool `json:"can_cancel"`
	Used      int  `json:"used"`
	Remaining *int `json:"remaining,omitempty"`
}

// Counter counts a student's cancellations inside a window on the given
// connection, so a caller already inside a transaction reads its own
// snapshot. A nil from means "since enrollment".
type Counter interface {
	CountStudentCancellations(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, from *time.Time, to time.Time) (int64, error)
}

// PeriodWindow returns the start of the current limit period containing asOf
// in the given location. Nil means the window is unbounded (enrollment).
func PeriodWindow(period LimitPeriod, asOf time.Time, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := asOf.In(loc)

	var start time.Time
	switch period {
	case LimitPeriodMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case LimitPeriodQuarter:
		quarterMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		start = time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, loc)
	case LimitPeriodYear:
		start = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return nil
	}
	return &start
}

// CheckLimit reports whether a student may still cancel within the current
// period. The result is advisory: the lesson-cancellation workflow surfaces
// it but does not refuse the cancellation here.
func CheckLimit(ctx context.Context, counter Counter, conn *gorm.DB, orgID, studentID snowflake.ID, p LimitPolicy, asOf time.Time, loc *time.Location) (LimitResult, error) {
	if !p.Enabled || p.Count == nil {
		used, err := counter.CountStudentCancellations(ctx, conn, orgID, studentID, PeriodWindow(p.Period, asOf, loc), asOf)
		if err != nil {
			return LimitResult{}, err
		}
		return LimitResult{CanCancel: true, Used: int(used)}, nil
	}

	from := PeriodWindow(p.Period, asOf, loc)
	used, err := counter.CountStudentCancellations(ctx, conn, orgID, studentID, from, asOf)
	if err != nil {
		return LimitResult{}, err
	}

	remaining := *p.Count - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return LimitResult{
		CanCancel: int(used) < *p.Count,
		Used:      int(used),
		Remaining: &remaining,
	}, nil
}
