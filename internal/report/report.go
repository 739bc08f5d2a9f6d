// Package report renders a net-worth statement as Markdown, and from there
// as HTML (goldmark) or styled terminal text (glamour).
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/goal"
	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/networth"
)

// Input is everything a report shows. Goal is optional.
type Input struct {
	Title     string
	Statement *networth.Statement
	Goal      *goal.Result
}

var categoryNames = map[model.Category]string{
	model.CategoryCash:        "Cash",
	model.CategoryGold:        "Gold",
	model.CategoryStock:       "Stocks",
	model.CategoryMutualFund:  "Mutual Funds",
	model.CategoryBond:        "Bonds",
	model.CategoryProperty:    "Property",
	model.CategoryDepreciable: "Depreciating Assets",
}

var liabilityNames = map[model.LiabilityKind]string{
	model.LiabilityLoan:       "Loans",
	model.LiabilityCreditCard: "Credit Cards",
}

// Markdown renders in as a GitHub-flavoured Markdown document.
func Markdown(in Input) string {
	var b strings.Builder
	st := in.Statement
	snap := st.Snapshot
	cur := snap.Currency

	title := in.Title
	if title == "" {
		title = "Net Worth"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "As of %s, in %s.\n\n", snap.ComputedAt.Format(time.DateOnly), cur)
	if snap.Approximate {
		b.WriteString("> **Approximate.** No exchange rate for " + strings.Join(st.MissingRates, ", ") +
			"; those amounts are included unconverted.\n\n")
	}

	b.WriteString("| | Amount |\n|---|---:|\n")
	row(&b, "Assets", currency.Format(snap.TotalAssets, cur))
	row(&b, "Liabilities", currency.Format(snap.TotalLiabilities, cur))
	row(&b, "**Net Worth**", "**"+currency.Format(snap.NetWorth, cur)+"**")

	if st.Assets != nil {
		b.WriteString("\n## Assets\n\n| Category | Value |\n|---|---:|\n")
		for _, c := range model.AssetCategories {
			row(&b, categoryNames[c], currency.Format(st.Assets.PerCategory[c], cur))
		}
		if len(st.Assets.Items) > 0 {
			b.WriteString("\n| Item | Category | Native | Value |\n|---|---|---:|---:|\n")
			for _, it := range st.Assets.Items {
				row(&b, escape(it.Name), categoryNames[it.Category],
					currency.Format(it.NativeValue, it.NativeCurrency), approx(it.CurrentValue, cur, it.Approximate))
			}
		}
	}

	if st.Liabilities != nil {
		l := st.Liabilities
		b.WriteString("\n## Liabilities\n\n| Kind | Outstanding |\n|---|---:|\n")
		for _, k := range model.LiabilityKinds {
			row(&b, liabilityNames[k], currency.Format(l.PerKind[k], cur))
		}
		if len(l.Items) > 0 {
			b.WriteString("\n| Item | Kind | Native | Outstanding |\n|---|---|---:|---:|\n")
			for _, it := range l.Items {
				row(&b, escape(it.Name), liabilityNames[it.Kind],
					currency.Format(it.NativeBalance, it.NativeCurrency), approx(it.Outstanding, cur, it.Approximate))
			}
		}
		if l.CreditUtilisation != nil {
			fmt.Fprintf(&b, "\nCredit utilisation: %s%% of %s.\n", l.CreditUtilisation.StringFixed(2), currency.Format(l.CreditLimit, cur))
		}
	}

	if g := in.Goal; g != nil {
		b.WriteString("\n## Goal\n\n| | |\n|---|---:|\n")
		row(&b, "Target", currency.Format(g.GoalNetWorth, cur))
		row(&b, "Progress", g.ProgressPercent.StringFixed(2)+"%")
		row(&b, "Expected", g.ExpectedProgress.StringFixed(2)+"%")
		row(&b, "Status", string(g.Status))
		row(&b, "Remaining", currency.Format(g.RemainingAmount, cur))
		row(&b, "Days left", fmt.Sprint(g.RemainingDays))
		row(&b, "Needed per month", currency.Format(g.RequiredMonthlyIncrease, cur))
	}

	return b.String()
}

func row(b *strings.Builder, cells ...string) {
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func approx(v decimal.Decimal, cur string, isApprox bool) string {
	s := currency.Format(v, cur)
	if isApprox {
		s += " *"
	}
	return s
}

// escape keeps user-supplied names from breaking table rows.
func escape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts Markdown to an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Page wraps the HTML rendering of markdown in a minimal standalone document.
func Page(title, markdown string) (string, error) {
	body, err := HTML(markdown)
	if err != nil {
		return "", err
	}
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" + html.EscapeString(title) +
		"</title></head><body>\n" + body + "</body></html>\n", nil
}

// Terminal renders Markdown for a terminal using a glamour standard style
// ("dark", "light", "notty", ...) wrapped at width columns.
func Terminal(markdown, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render terminal: %w", err)
	}
	return out, nil
}
