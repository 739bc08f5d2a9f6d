// Package valuation reduces one user's raw records to per-item values and
// per-category totals in a single reporting currency.
//
// The engine is stateless: the records, the rate table, the reporting currency
// and the as-of date are all explicit inputs, so the same inputs always give the
// same output and concurrent calls need no coordination.
package valuation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/currency"
)

// ErrUnknownCategory is returned when a record's category, kind or valuation
// tag matches no valuation rule. It is fatal for the whole computation: dropping
// the record would understate net worth.
var ErrUnknownCategory = errors.New("valuation: unknown category")

// Params are the explicit inputs shared by every valuation call.
type Params struct {
	// AsOf drives depreciation. Pass time.Now() for live figures or a past date
	// to backtest.
	AsOf time.Time
	// Rates holds base→target quotes; its base is the pivot currency.
	Rates *currency.RateTable
	// ReportingCurrency is the currency all totals are expressed in.
	ReportingCurrency string
}

// Base returns the pivot currency: the rate table's base, or the reporting
// currency when no table is supplied.
func (p Params) Base() string {
	if p.Rates != nil && p.Rates.Base() != "" {
		return p.Rates.Base()
	}
	return p.ReportingCurrency
}

// Engine values assets and liabilities.
type Engine struct{}

// NewEngine creates a valuation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// converter converts native amounts into the reporting currency and remembers
// which pairs were missing.
type converter struct {
	p       Params
	missing map[string]struct{}
}

func newConverter(p Params) *converter {
	return &converter{p: p, missing: make(map[string]struct{})}
}

// convert returns the amount in the reporting currency. The second result is
// true when a rate was missing and the amount is unconverted.
func (c *converter) convert(amount decimal.Decimal, from string) (decimal.Decimal, bool) {
	if from == "" {
		from = c.p.ReportingCurrency
	}
	out, err := currency.Convert(amount, from, c.p.ReportingCurrency, c.p.Rates, c.p.Base())
	if err != nil {
		var rue *currency.RateUnavailableError
		if errors.As(err, &rue) {
			c.missing[rue.Pair()] = struct{}{}
		}
		return out, true
	}
	return out, false
}

func (c *converter) missingPairs() []string {
	if len(c.missing) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(c.missing))
	for p := range c.missing {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

func unknown(id string, what string, tag any) error {
	return fmt.Errorf("%w: record %s has %s %q", ErrUnknownCategory, id, what, tag)
}
