// Package networth combines asset and liability totals into a net-worth
// snapshot. Every function here is total and pure: identical inputs produce
// identical snapshots however often they are called.
package networth

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/valuation"
)

// Aggregate sums the per-category totals and derives net worth. Keys are
// visited in sorted order so the result never depends on map iteration.
func Aggregate(
	assetTotals map[model.Category]decimal.Decimal,
	liabilityTotals map[model.LiabilityKind]decimal.Decimal,
	currency string,
	computedAt time.Time,
) model.NetWorthSnapshot {
	assets := decimal.Zero
	for _, k := range sortedKeys(assetTotals) {
		assets = assets.Add(assetTotals[k])
	}
	liabilities := decimal.Zero
	for _, k := range sortedKeys(liabilityTotals) {
		liabilities = liabilities.Add(liabilityTotals[k])
	}

	return model.NetWorthSnapshot{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		NetWorth:         assets.Sub(liabilities),
		Currency:         currency,
		ComputedAt:       computedAt,
	}
}

// FromValuations aggregates the two engine results. The snapshot is
// approximate when either side had a missing rate.
func FromValuations(a *valuation.AssetValuation, l *valuation.LiabilityValuation, computedAt time.Time) model.NetWorthSnapshot {
	var (
		assetTotals     map[model.Category]decimal.Decimal
		liabilityTotals map[model.LiabilityKind]decimal.Decimal
		currency        string
		approx          bool
	)
	if a != nil {
		assetTotals = a.PerCategory
		currency = a.Currency
		approx = a.Approximate
	}
	if l != nil {
		liabilityTotals = l.PerKind
		if currency == "" {
			currency = l.Currency
		}
		approx = approx || l.Approximate
	}

	snap := Aggregate(assetTotals, liabilityTotals, currency, computedAt)
	snap.Approximate = approx
	return snap
}

// Statement is a full valuation of one user's records.
type Statement struct {
	Snapshot     model.NetWorthSnapshot        `json:"snapshot"`
	Assets       *valuation.AssetValuation     `json:"assets"`
	Liabilities  *valuation.LiabilityValuation `json:"liabilities"`
	MissingRates []string                      `json:"missing_rates,omitempty"`
}

// Compute runs both valuation engines over records and aggregates them. The
// snapshot is stamped with p.AsOf, keeping Compute deterministic.
func Compute(engine *valuation.Engine, records model.Records, p valuation.Params) (*Statement, error) {
	assets, err := engine.ValuateAssets(records, p)
	if err != nil {
		return nil, err
	}
	liabilities, err := engine.ValuateLiabilities(records.Liabilities, p)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Snapshot:     FromValuations(assets, liabilities, p.AsOf),
		Assets:       assets,
		Liabilities:  liabilities,
		MissingRates: mergePairs(assets.MissingRates, liabilities.MissingRates),
	}, nil
}

func mergePairs(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
