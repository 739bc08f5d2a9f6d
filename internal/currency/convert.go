package currency

import (
	"github.com/shopspring/decimal"
)

// Convert converts amount from one currency to another through base:
//
//	from → base:  amount / rate(base→from)
//	base → to:    amount * rate(base→to)
//
// Identical currencies return amount without a lookup. If either leg has no
// live rate, Convert returns the original amount and a *RateUnavailableError
// (matching ErrRateUnavailable); the amount is then unconverted, not 1:1.
func Convert(amount decimal.Decimal, from, to string, rates *RateTable, base string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	inBase := amount
	if from != base {
		r, ok := rates.Rate(base, from)
		if !ok {
			return amount, &RateUnavailableError{Base: base, Target: from}
		}
		inBase = amount.Div(r)
	}

	if to == base {
		return inBase, nil
	}
	r, ok := rates.Rate(base, to)
	if !ok {
		return amount, &RateUnavailableError{Base: base, Target: to}
	}
	return inBase.Mul(r), nil
}
