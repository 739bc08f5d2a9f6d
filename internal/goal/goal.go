// Package goal measures progress towards a target net worth.
package goal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

// ErrInvalidGoal is returned by Validate.
var ErrInvalidGoal = errors.New("goal: invalid goal")

// Status says whether progress is ahead of, on, or behind a linear schedule.
type Status string

const (
	StatusAhead   Status = "ahead"
	StatusOnTrack Status = "ontrack"
	StatusBehind  Status = "behind"
)

// StatusThreshold is the band, in percentage points around the expected
// progress, that still counts as on track.
var StatusThreshold = decimal.NewFromInt(5)

// DaysPerMonth converts remaining days to remaining months.
const DaysPerMonth = 30

var hundred = decimal.NewFromInt(100)

// Result is the outcome of Progress. Percentages and money are rounded to two
// places.
type Result struct {
	CurrentNetWorth         decimal.Decimal `json:"current_net_worth"`
	GoalNetWorth            decimal.Decimal `json:"goal_net_worth"`
	ProgressPercent         decimal.Decimal `json:"progress_percent"`
	RemainingAmount         decimal.Decimal `json:"remaining_amount"`
	RemainingDays           int64           `json:"remaining_days"`
	RemainingMonths         int64           `json:"remaining_months"`
	RequiredMonthlyIncrease decimal.Decimal `json:"required_monthly_increase"`
	ExpectedProgress        decimal.Decimal `json:"expected_progress"`
	Status                  Status          `json:"status"`
}

// Progress compares currentNetWorth against g as of today.
//
// When no months remain, the whole remaining amount is due now and becomes the
// required monthly increase. A zero goal yields zero progress.
func Progress(currentNetWorth decimal.Decimal, g model.Goal, today time.Time) Result {
	progress := decimal.Zero
	if g.GoalNetWorth.IsPositive() {
		progress = currentNetWorth.Div(g.GoalNetWorth).Mul(hundred).Round(2)
	}

	remaining := decimal.Max(decimal.Zero, g.GoalNetWorth.Sub(currentNetWorth))

	days := remainingDays(today, g.TargetDate)
	months := int64(math.Ceil(float64(days) / DaysPerMonth))

	required := remaining
	if months > 0 {
		required = remaining.Div(decimal.NewFromInt(months))
	}

	expected := expectedProgress(g.CreatedAt, g.TargetDate, today)

	return Result{
		CurrentNetWorth:         currentNetWorth,
		GoalNetWorth:            g.GoalNetWorth,
		ProgressPercent:         progress,
		RemainingAmount:         remaining.Round(2),
		RemainingDays:           days,
		RemainingMonths:         months,
		RequiredMonthlyIncrease: required.Round(2),
		ExpectedProgress:        expected,
		Status:                  status(progress, expected),
	}
}

// remainingDays is ceil(target - today) in days, or 0 once the target has passed.
func remainingDays(today, target time.Time) int64 {
	if !target.After(today) {
		return 0
	}
	return int64(math.Ceil(target.Sub(today).Hours() / 24))
}

// expectedProgress is the share of the [created, target] window that has
// elapsed, as a percentage clamped to 0..100. An empty window is complete.
func expectedProgress(created, target, today time.Time) decimal.Decimal {
	if created.IsZero() || created.After(today) {
		created = today
	}
	total := target.Sub(created)
	if total <= 0 {
		return hundred
	}
	elapsed := today.Sub(created)
	pct := decimal.NewFromInt(int64(elapsed)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred)
	return decimal.Min(hundred, decimal.Max(decimal.Zero, pct)).Round(2)
}

func status(progress, expected decimal.Decimal) Status {
	switch {
	case progress.GreaterThan(expected.Add(StatusThreshold)):
		return StatusAhead
	case progress.LessThan(expected.Sub(StatusThreshold)):
		return StatusBehind
	default:
		return StatusOnTrack
	}
}

// Validate checks a goal before it is stored.
func Validate(g model.Goal) error {
	if !g.GoalNetWorth.IsPositive() {
		return fmt.Errorf("%w: goal_net_worth must be positive", ErrInvalidGoal)
	}
	if g.TargetDate.IsZero() {
		return fmt.Errorf("%w: target_date is required", ErrInvalidGoal)
	}
	return nil
}
