package goal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ledgerly/networth-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var today = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func TestProgress_TwelveMonthScenario(t *testing.T) {
	g := model.Goal{
		GoalNetWorth: d(150000),
		TargetDate:   today.Add(days(360)),
		CreatedAt:    today,
	}

	r := Progress(d(70000), g, today)

	assert.True(t, r.ProgressPercent.Equal(d(46.67)), "progress %s", r.ProgressPercent)
	assert.True(t, r.RemainingAmount.Equal(d(80000)), "remaining %s", r.RemainingAmount)
	assert.Equal(t, int64(360), r.RemainingDays)
	assert.Equal(t, int64(12), r.RemainingMonths)
	assert.True(t, r.RequiredMonthlyIncrease.Equal(d(6666.67)), "required %s", r.RequiredMonthlyIncrease)
}

func TestProgress_ZeroGoalNoDivision(t *testing.T) {
	r := Progress(d(70000), model.Goal{TargetDate: today.Add(days(30))}, today)
	assert.True(t, r.ProgressPercent.IsZero())
	assert.True(t, r.RemainingAmount.IsZero())
}

func TestProgress_PastTargetIsDueNow(t *testing.T) {
	g := model.Goal{GoalNetWorth: d(1000), TargetDate: today.Add(-days(10)), CreatedAt: today.Add(-days(100))}

	r := Progress(d(400), g, today)

	assert.Equal(t, int64(0), r.RemainingDays)
	assert.Equal(t, int64(0), r.RemainingMonths)
	assert.True(t, r.RequiredMonthlyIncrease.Equal(d(600)))
	assert.True(t, r.ExpectedProgress.Equal(d(100)))
	assert.Equal(t, StatusBehind, r.Status)
}

func TestProgress_PartialDaysRoundUp(t *testing.T) {
	g := model.Goal{GoalNetWorth: d(1000), TargetDate: today.Add(days(31) + time.Hour)}

	r := Progress(d(0), g, today)

	assert.Equal(t, int64(32), r.RemainingDays)
	assert.Equal(t, int64(2), r.RemainingMonths)
	assert.True(t, r.RequiredMonthlyIncrease.Equal(d(500)))
}

func TestProgress_GoalExceeded(t *testing.T) {
	g := model.Goal{GoalNetWorth: d(100), TargetDate: today.Add(days(60)), CreatedAt: today.Add(-days(60))}

	r := Progress(d(150), g, today)

	assert.True(t, r.ProgressPercent.Equal(d(150)))
	assert.True(t, r.RemainingAmount.IsZero())
	assert.True(t, r.RequiredMonthlyIncrease.IsZero())
	assert.Equal(t, StatusAhead, r.Status)
}

func TestProgress_Status(t *testing.T) {
	// Halfway through the window, so 50% progress is expected.
	g := model.Goal{
		GoalNetWorth: d(1000),
		CreatedAt:    today.Add(-days(180)),
		TargetDate:   today.Add(days(180)),
	}

	tests := []struct {
		current float64
		want    Status
	}{
		{600, StatusAhead},
		{551, StatusAhead},
		{550, StatusOnTrack},
		{500, StatusOnTrack},
		{450, StatusOnTrack},
		{449, StatusBehind},
		{100, StatusBehind},
	}
	for _, tt := range tests {
		r := Progress(d(tt.current), g, today)
		assert.True(t, r.ExpectedProgress.Equal(d(50)), "expected progress %s", r.ExpectedProgress)
		assert.Equal(t, tt.want, r.Status, "current=%v", tt.current)
	}
}

func TestProgress_MissingCreatedAtExpectsNothingYet(t *testing.T) {
	g := model.Goal{GoalNetWorth: d(1000), TargetDate: today.Add(days(90))}
	r := Progress(d(10), g, today)
	assert.True(t, r.ExpectedProgress.IsZero())
	assert.Equal(t, StatusOnTrack, r.Status)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(model.Goal{GoalNetWorth: d(1), TargetDate: today}))
	assert.ErrorIs(t, Validate(model.Goal{GoalNetWorth: d(0), TargetDate: today}), ErrInvalidGoal)
	assert.ErrorIs(t, Validate(model.Goal{GoalNetWorth: d(10)}), ErrInvalidGoal)
}
