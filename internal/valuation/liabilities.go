package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

// ValuedLiability is one liability in the reporting currency.
type ValuedLiability struct {
	ID             string              `json:"id"`
	Kind           model.LiabilityKind `json:"kind"`
	Name           string              `json:"name"`
	NativeBalance  decimal.Decimal     `json:"native_balance"`
	NativeCurrency string              `json:"native_currency"`
	Outstanding    decimal.Decimal     `json:"outstanding"`
	Limit          *decimal.Decimal    `json:"limit,omitempty"`
	Approximate    bool                `json:"approximate"`
}

// LiabilityValuation is the result of ValuateLiabilities.
type LiabilityValuation struct {
	PerKind map[model.LiabilityKind]decimal.Decimal `json:"per_kind"`
	Items   []ValuedLiability                       `json:"items"`
	Total   decimal.Decimal                         `json:"total"`
	// CreditLimit sums the limits of cards that have one.
	CreditLimit decimal.Decimal `json:"credit_limit"`
	// CreditUtilisation is outstanding/limit*100 over cards with a limit, nil
	// when no card has a limit.
	CreditUtilisation *decimal.Decimal `json:"credit_utilisation,omitempty"`
	Currency          string           `json:"currency"`
	Approximate       bool             `json:"approximate"`
	MissingRates      []string         `json:"missing_rates,omitempty"`
}

// ValuateLiabilities sums outstanding balances per kind in p.ReportingCurrency.
// Loans and credit cards both count their outstanding (used) amount; a card's
// limit never contributes to the total.
func (e *Engine) ValuateLiabilities(liabilities []model.Liability, p Params) (*LiabilityValuation, error) {
	conv := newConverter(p)
	out := &LiabilityValuation{
		PerKind:     make(map[model.LiabilityKind]decimal.Decimal, len(model.LiabilityKinds)),
		Items:       make([]ValuedLiability, 0, len(liabilities)),
		Total:       decimal.Zero,
		CreditLimit: decimal.Zero,
		Currency:    p.ReportingCurrency,
	}
	for _, k := range model.LiabilityKinds {
		out.PerKind[k] = decimal.Zero
	}

	limitedUsed := decimal.Zero
	for _, l := range liabilities {
		switch l.Kind {
		case model.LiabilityLoan, model.LiabilityCreditCard:
		default:
			return nil, unknown(l.ID, "liability kind", l.Kind)
		}

		value, approx := conv.convert(l.OutstandingBalance, l.Currency)
		cur := l.Currency
		if cur == "" {
			cur = p.ReportingCurrency
		}
		item := ValuedLiability{
			ID:             l.ID,
			Kind:           l.Kind,
			Name:           l.Name,
			NativeBalance:  l.OutstandingBalance,
			NativeCurrency: cur,
			Outstanding:    value,
			Approximate:    approx,
		}

		if l.Kind == model.LiabilityCreditCard && l.Limit != nil && l.Limit.IsPositive() {
			limit, limitApprox := conv.convert(*l.Limit, l.Currency)
			item.Limit = &limit
			out.CreditLimit = out.CreditLimit.Add(limit)
			limitedUsed = limitedUsed.Add(value)
			approx = approx || limitApprox
		}

		out.Items = append(out.Items, item)
		out.PerKind[l.Kind] = out.PerKind[l.Kind].Add(value)
		out.Total = out.Total.Add(value)
		if approx {
			out.Approximate = true
		}
	}

	if out.CreditLimit.IsPositive() {
		u := limitedUsed.Div(out.CreditLimit).Mul(decimal.NewFromInt(100)).Round(2)
		out.CreditUtilisation = &u
	}
	out.MissingRates = conv.missingPairs()
	return out, nil
}
