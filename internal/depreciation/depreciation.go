// Package depreciation derives the current value of a purchased asset from its
// purchase price, age and depreciation policy.
//
// CurrentValue is a pure function of the asset and asOf: callers pass "now" for
// live display or any historical date for backtesting. Missing or out-of-range
// policy fields fall back to no depreciation rather than failing, so a partial
// record still produces a figure. Validate reports those records separately for
// callers that want to reject them at input time.
package depreciation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

// ErrMalformedRecord is returned by Validate when a policy field required by the
// selected method is missing or out of range.
var ErrMalformedRecord = errors.New("depreciation: malformed record")

// PriceScale is the number of decimal places of a computed value.
const PriceScale int32 = 2

var (
	secondsPerYear = decimal.NewFromFloat(365.25).Mul(decimal.NewFromInt(86400))
	hundred        = decimal.NewFromInt(100)
	one            = decimal.NewFromInt(1)
)

// powPrecision is the number of decimal places kept in fractional-year powers.
const powPrecision int32 = 24

// YearsElapsed returns the fractional years between purchase and asOf using a
// 365.25-day year. Dates in the future yield zero.
func YearsElapsed(purchase, asOf time.Time) decimal.Decimal {
	if !asOf.After(purchase) {
		return decimal.Zero
	}
	secs := decimal.NewFromInt(asOf.Unix() - purchase.Unix())
	return secs.Div(secondsPerYear)
}

// CurrentValue returns the asset's value as of asOf.
//
// A disabled asset keeps its pinned value, or its purchase price when nothing is
// pinned. Otherwise the method formula is applied and the result is rounded to
// two places and floored at max(0, salvage).
func CurrentValue(asset model.DepreciableAsset, asOf time.Time) decimal.Decimal {
	if !asset.DepreciationEnabled {
		if asset.PinnedValue != nil {
			return *asset.PinnedValue
		}
		return asset.PurchasePrice
	}

	years := YearsElapsed(asset.PurchaseDate, asOf)

	var value decimal.Decimal
	switch asset.Method {
	case model.MethodStraightLine:
		value = straightLine(asset.PurchasePrice, asset.UsefulLifeYears, years)
	case model.MethodPercentage:
		value = decliningBalance(asset.PurchasePrice, asset.Rate, years)
	default:
		value = asset.PurchasePrice
	}

	return clamp(value.Round(PriceScale), asset.SalvageValue)
}

// straightLine loses price/life per year. A missing or non-positive life means
// no depreciation.
func straightLine(price decimal.Decimal, life *decimal.Decimal, years decimal.Decimal) decimal.Decimal {
	if life == nil || !life.IsPositive() {
		return price
	}
	perYear := price.Div(*life)
	return price.Sub(perYear.Mul(years))
}

// decliningBalance loses rate% of the remaining value per year. A missing rate
// or one outside [0, 100] means no depreciation.
func decliningBalance(price decimal.Decimal, rate *decimal.Decimal, years decimal.Decimal) decimal.Decimal {
	if rate == nil || rate.IsNegative() || rate.GreaterThan(hundred) || !years.IsPositive() {
		return price
	}
	keep := one.Sub(rate.Div(hundred))
	if keep.IsZero() {
		return decimal.Zero
	}
	factor, err := keep.PowWithPrecision(years, powPrecision)
	if err != nil {
		return price
	}
	return price.Mul(factor)
}

func clamp(value, salvage decimal.Decimal) decimal.Decimal {
	floor := decimal.Max(decimal.Zero, salvage)
	return decimal.Max(floor, value)
}

// Validate checks the policy fields the selected method needs. It never affects
// CurrentValue, which always falls back to no depreciation.
func Validate(asset model.DepreciableAsset) error {
	if asset.PurchasePrice.IsNegative() {
		return fmt.Errorf("%w: purchase price must be non-negative", ErrMalformedRecord)
	}
	if asset.SalvageValue.IsNegative() {
		return fmt.Errorf("%w: salvage value must be non-negative", ErrMalformedRecord)
	}
	if asset.PurchaseDate.IsZero() {
		return fmt.Errorf("%w: purchase date is required", ErrMalformedRecord)
	}
	if asset.PinnedValue != nil && asset.PinnedValue.IsNegative() {
		return fmt.Errorf("%w: pinned value must be non-negative", ErrMalformedRecord)
	}

	switch asset.Method {
	case model.MethodStraightLine:
		if asset.UsefulLifeYears == nil || !asset.UsefulLifeYears.IsPositive() {
			return fmt.Errorf("%w: STRAIGHT_LINE requires a positive useful_life_years", ErrMalformedRecord)
		}
	case model.MethodPercentage:
		if asset.Rate == nil {
			return fmt.Errorf("%w: PERCENTAGE requires a rate", ErrMalformedRecord)
		}
		if asset.Rate.IsNegative() || asset.Rate.GreaterThan(hundred) {
			return fmt.Errorf("%w: rate %s outside 0-100", ErrMalformedRecord, asset.Rate)
		}
	case model.MethodNone:
	default:
		return fmt.Errorf("%w: unknown method %q", ErrMalformedRecord, asset.Method)
	}
	return nil
}
