package cancellation

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func feePolicy(threshold, percent int) FeePolicy {
	return FeePolicy{
		Enabled:        true,
		HoursThreshold: intPtr(threshold),
		FeePercent:     intPtr(percent),
	}
}

func TestEvaluateFeeInsideWindow(t *testing.T) {
	scheduled := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	cancelled := scheduled.Add(-23*time.Hour - 59*time.Minute)

	// Price 100.00 in minor units, 50% fee.
	result := EvaluateFee(scheduled, cancelled, feePolicy(24, 50), 10000)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(5000), result.Amount)
}

func TestEvaluateFeeExactlyAtThresholdIsFree(t *testing.T) {
	scheduled := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	cancelled := scheduled.Add(-24 * time.Hour)

	result := EvaluateFee(scheduled, cancelled, feePolicy(24, 50), 10000)
	assert.False(t, result.Applied)
	assert.Zero(t, result.Amount)
}

func TestEvaluateFeeAfterStartIsFree(t *testing.T) {
	scheduled := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	cancelled := scheduled.Add(30 * time.Minute)

	result := EvaluateFee(scheduled, cancelled, feePolicy(24, 50), 10000)
	assert.False(t, result.Applied)
}

func TestEvaluateFeeDisabledPolicy(t *testing.T) {
	scheduled := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	cancelled := scheduled.Add(-time.Hour)

	result := EvaluateFee(scheduled, cancelled, FeePolicy{}, 10000)
	assert.False(t, result.Applied)

	partial := FeePolicy{Enabled: true, HoursThreshold: intPtr(24)}
	result = EvaluateFee(scheduled, cancelled, partial, 10000)
	assert.False(t, result.Applied)
}

func TestEvaluateFeeRoundsHalfUp(t *testing.T) {
	scheduled := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	cancelled := scheduled.Add(-time.Hour)

	// 33% of 10.05 = 3.3165 -> 3.32 rounded half-up.
	result := EvaluateFee(scheduled, cancelled, feePolicy(24, 33), 1005)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(332), result.Amount)
}

func TestPeriodWindow(t *testing.T) {
	asOf := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	month := PeriodWindow(LimitPeriodMonth, asOf, time.UTC)
	require.NotNil(t, month)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *month)

	quarter := PeriodWindow(LimitPeriodQuarter, asOf, time.UTC)
	require.NotNil(t, quarter)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *quarter)

	year := PeriodWindow(LimitPeriodYear, asOf, time.UTC)
	require.NotNil(t, year)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *year)

	assert.Nil(t, PeriodWindow(LimitPeriodEnrollment, asOf, time.UTC))
}

type counterStub struct {
	count int64
	from  *time.Time
}

func (c *counterStub) CountStudentCancellations(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, from *time.Time, to time.Time) (int64, error) {
	c.from = from
	return c.count, nil
}

func TestCheckLimitRemaining(t *testing.T) {
	counter := &counterStub{count: 2}
	policy := LimitPolicy{Enabled: true, Count: intPtr(3), Period: LimitPeriodMonth}
	asOf := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	result, err := CheckLimit(context.Background(), counter, nil, 1, 2, policy, asOf, time.UTC)
	require.NoError(t, err)
	assert.True(t, result.CanCancel)
	assert.Equal(t, 2, result.Used)
	require.NotNil(t, result.Remaining)
	assert.Equal(t, 1, *result.Remaining)
	require.NotNil(t, counter.from)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *counter.from)
}

func TestCheckLimitExhausted(t *testing.T) {
	counter := &counterStub{count: 3}
	policy := LimitPolicy{Enabled: true, Count: intPtr(3), Period: LimitPeriodMonth}
	asOf := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	result, err := CheckLimit(context.Background(), counter, nil, 1, 2, policy, asOf, time.UTC)
	require.NoError(t, err)
	assert.False(t, result.CanCancel)
	require.NotNil(t, result.Remaining)
	assert.Zero(t, *result.Remaining)
}

func TestCheckLimitDisabledAlwaysAllows(t *testing.T) {
	counter := &counterStub{count: 99}
	asOf := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	result, err := CheckLimit(context.Background(), counter, nil, 1, 2, LimitPolicy{Period: LimitPeriodMonth}, asOf, time.UTC)
	require.NoError(t, err)
	assert.True(t, result.CanCancel)
	assert.Equal(t, 99, result.Used)
	assert.Nil(t, result.Remaining)
}

func TestCheckLimitEnrollmentPeriodUnbounded(t *testing.T) {
	counter := &counterStub{count: 1}
	policy := LimitPolicy{Enabled: true, Count: intPtr(2), Period: LimitPeriodEnrollment}
	asOf := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	result, err := CheckLimit(context.Background(), counter, nil, 1, 2, policy, asOf, time.UTC)
	require.NoError(t, err)
	assert.True(t, result.CanCancel)
	assert.Nil(t, counter.from)
}
