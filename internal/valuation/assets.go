package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/depreciation"
	"github.com/ledgerly/networth-engine/internal/model"
)

// ValuedItem is one asset normalized to the common shape.
type ValuedItem struct {
	ID             string          `json:"id"`
	Category       model.Category  `json:"category"`
	Name           string          `json:"name"`
	NativeValue    decimal.Decimal `json:"native_value"`
	NativeCurrency string          `json:"native_currency"`
	CurrentValue   decimal.Decimal `json:"current_value"` // in the reporting currency
	Approximate    bool            `json:"approximate"`
}

// AssetValuation is the result of ValuateAssets.
type AssetValuation struct {
	// PerCategory holds every known asset category, zero when it has no items.
	PerCategory  map[model.Category]decimal.Decimal `json:"per_category"`
	Items        []ValuedItem                       `json:"items"`
	Total        decimal.Decimal                    `json:"total"`
	Currency     string                             `json:"currency"`
	Approximate  bool                               `json:"approximate"`
	MissingRates []string                           `json:"missing_rates,omitempty"`
}

// ValuateAssets values every cash, holding and depreciable record and sums them
// per category in p.ReportingCurrency.
//
// A missing exchange rate leaves that item unconverted and marks it (and the
// result) approximate. Any record with an unrecognized tag fails the whole
// call with ErrUnknownCategory.
func (e *Engine) ValuateAssets(records model.Records, p Params) (*AssetValuation, error) {
	conv := newConverter(p)
	out := &AssetValuation{
		PerCategory: make(map[model.Category]decimal.Decimal, len(model.AssetCategories)),
		Items:       make([]ValuedItem, 0, len(records.Cash)+len(records.Holdings)+len(records.Depreciable)),
		Total:       decimal.Zero,
		Currency:    p.ReportingCurrency,
	}
	for _, c := range model.AssetCategories {
		out.PerCategory[c] = decimal.Zero
	}

	add := func(id, name string, cat model.Category, native decimal.Decimal, cur string) {
		value, approx := conv.convert(native, cur)
		if cur == "" {
			cur = p.ReportingCurrency
		}
		out.Items = append(out.Items, ValuedItem{
			ID:             id,
			Category:       cat,
			Name:           name,
			NativeValue:    native,
			NativeCurrency: cur,
			CurrentValue:   value,
			Approximate:    approx,
		})
		out.PerCategory[cat] = out.PerCategory[cat].Add(value)
		out.Total = out.Total.Add(value)
		if approx {
			out.Approximate = true
		}
	}

	for _, c := range records.Cash {
		switch c.Kind {
		case model.CashBank, model.CashWallet:
		default:
			return nil, unknown(c.ID, "cash kind", c.Kind)
		}
		add(c.ID, c.Name, model.CategoryCash, c.Balance, c.Currency)
	}

	for _, h := range records.Holdings {
		v, err := holdingValue(h)
		if err != nil {
			return nil, err
		}
		add(h.ID, h.Name, h.Category, v, h.Currency)
	}

	for _, a := range records.Depreciable {
		add(a.ID, a.Name, model.CategoryDepreciable, depreciation.CurrentValue(a, p.AsOf), a.Currency)
	}

	out.MissingRates = conv.missingPairs()
	return out, nil
}

// holdingValue applies the category rule to a holding. Gold and stock are
// usually DERIVED; mutual funds, bonds and property are priced externally and
// arrive SUPPLIED. Either variant is honoured for any holding category.
func holdingValue(h model.HoldingAsset) (decimal.Decimal, error) {
	switch h.Category {
	case model.CategoryGold, model.CategoryStock,
		model.CategoryMutualFund, model.CategoryBond, model.CategoryProperty:
	default:
		return decimal.Zero, unknown(h.ID, "category", h.Category)
	}

	switch h.Valuation.Kind {
	case model.ValuationDerived:
		return h.Valuation.Quantity.Mul(h.Valuation.UnitPrice), nil
	case model.ValuationSupplied:
		return h.Valuation.CurrentValue, nil
	default:
		return decimal.Zero, unknown(h.ID, "valuation kind", h.Valuation.Kind)
	}
}

// ValidateHolding reports ErrUnknownCategory for a holding that no valuation
// rule applies to, so it can be rejected before it is stored.
func ValidateHolding(h model.HoldingAsset) error {
	_, err := holdingValue(h)
	return err
}
