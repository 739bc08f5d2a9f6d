// Package currency converts amounts between currencies through a single base
// currency and formats them for display.
//
// Conversion never blocks valuation: a missing rate returns the unconverted
// amount together with ErrRateUnavailable so callers can flag the figure as
// approximate. Full decimal precision is kept internally; rounding to the
// currency's minor unit happens only in Format.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

var (
	// ErrRateUnavailable is returned (wrapped in *RateUnavailableError) when a
	// conversion pair has no live rate. The accompanying amount is unconverted.
	ErrRateUnavailable = errors.New("currency: rate unavailable")

	// ErrUnsupportedCurrency is returned for codes outside the supported set.
	ErrUnsupportedCurrency = errors.New("currency: unsupported currency")
)

// supported is the fixed set of currencies records may be denominated in.
var supported = map[string]bool{
	"AED": true,
	"USD": true,
	"EUR": true,
	"GBP": true,
	"INR": true,
	"SAR": true,
}

// RateUnavailableError names the base→target pair that was missing.
type RateUnavailableError struct {
	Base   string
	Target string
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("currency: rate unavailable for %s→%s", e.Base, e.Target)
}

// Is makes errors.Is(err, ErrRateUnavailable) match.
func (e *RateUnavailableError) Is(target error) bool {
	return target == ErrRateUnavailable
}

// Pair renders the missing pair as "BASE/TARGET".
func (e *RateUnavailableError) Pair() string {
	return e.Base + "/" + e.Target
}

// Supported reports whether code is in the supported set and known to go-money.
func Supported(code string) bool {
	return supported[code] && money.GetCurrency(code) != nil
}

// Validate normalizes code to upper case and checks it is supported.
func Validate(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !Supported(c) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// Codes returns the supported currency codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(supported))
	for c := range supported {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Format renders amount using the currency's symbol, grouping and minor unit,
// e.g. "$3,375.00". Unknown codes fall back to "<amount> <code>" with 2 decimals.
func Format(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

type pair struct {
	base   string
	target string
}

// RateTable maps base→target pairs to their live rate. Older quotes for a pair
// are kept in History for audit; lookups always use the most recent FetchedAt.
//
// A RateTable is built once and then treated as immutable for the duration of a
// valuation; it is safe for concurrent reads but not for concurrent Add.
type RateTable struct {
	base    string
	live    map[pair]model.ExchangeRate
	history []model.ExchangeRate
}

// NewRateTable creates a table pivoting on base, pre-loaded with rates.
func NewRateTable(base string, rates ...model.ExchangeRate) *RateTable {
	t := &RateTable{
		base: base,
		live: make(map[pair]model.ExchangeRate),
	}
	for _, r := range rates {
		t.Add(r)
	}
	return t
}

// Base returns the pivot currency.
func (t *RateTable) Base() string {
	return t.base
}

// Add records a quote. Non-positive rates are ignored. The quote becomes live
// only if it is at least as recent as the current live entry for its pair.
func (t *RateTable) Add(r model.ExchangeRate) {
	if !r.Rate.IsPositive() {
		return
	}
	t.history = append(t.history, r)

	k := pair{base: r.Base, target: r.Target}
	if cur, ok := t.live[k]; ok && cur.FetchedAt.After(r.FetchedAt) {
		return
	}
	t.live[k] = r
}

// Rate returns the live base→target rate. A currency converts to itself at 1.
func (t *RateTable) Rate(base, target string) (decimal.Decimal, bool) {
	if base == target {
		return decimal.NewFromInt(1), true
	}
	if t == nil {
		return decimal.Zero, false
	}
	r, ok := t.live[pair{base: base, target: target}]
	if !ok {
		return decimal.Zero, false
	}
	return r.Rate, true
}

// Live returns the live quotes sorted by base then target.
func (t *RateTable) Live() []model.ExchangeRate {
	if t == nil {
		return nil
	}
	out := make([]model.ExchangeRate, 0, len(t.live))
	for _, r := range t.live {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// History returns every quote added, in insertion order.
func (t *RateTable) History() []model.ExchangeRate {
	if t == nil {
		return nil
	}
	out := make([]model.ExchangeRate, len(t.history))
	copy(out, t.history)
	return out
}

// Len returns the number of live pairs.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.live)
}
