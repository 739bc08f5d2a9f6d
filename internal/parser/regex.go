package parser

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

const amountPattern = `([0-9][0-9,]*(?:\.[0-9]+)?)`

var (
	// "AED 1,234.50", "Rs. 500", "$12"
	prefixAmountRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(AED|USD|EUR|GBP|INR|SAR|Dhs?\.?|Rs\.?|SR|\$|€|£|₹)\s?` + amountPattern)
	// "1,234.50 AED"
	suffixAmountRe = regexp.MustCompile(`(?i)` + amountPattern + `\s?(AED|USD|EUR|GBP|INR|SAR|Dhs?|SR)\b`)
	// bare number, used only when no currency marker is present
	bareAmountRe = regexp.MustCompile(amountPattern)

	isoDateRe   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
	monthDateRe = regexp.MustCompile(`\b(\d{1,2}-[A-Za-z]{3}-\d{4})\b`)

	merchantRe = regexp.MustCompile(`(?i)\b(?:at|to|from)\s+([A-Za-z0-9&'\- ]+?)(?:\s+(?:on|for|via|ref|using|with)\b|[.,;:]|$)`)
	wordRe     = regexp.MustCompile(`[a-z]+`)
)

var currencyMarkers = map[string]string{
	"aed": "AED", "dh": "AED", "dhs": "AED",
	"usd": "USD", "$": "USD",
	"eur": "EUR", "€": "EUR",
	"gbp": "GBP", "£": "GBP",
	"inr": "INR", "rs": "INR", "₹": "INR",
	"sar": "SAR", "sr": "SAR",
}

var incomeWords = map[string]bool{
	"credited": true, "received": true, "deposit": true, "deposited": true,
	"salary": true, "refund": true, "refunded": true, "cashback": true,
}

// categoryWords maps a lower-case word to a category. The first matching word
// in the text wins.
var categoryWords = map[string]string{
	"carrefour": "groceries", "lulu": "groceries", "grocery": "groceries", "supermarket": "groceries", "spinneys": "groceries",
	"restaurant": "dining", "cafe": "dining", "starbucks": "dining", "mcdonalds": "dining", "talabat": "dining", "deliveroo": "dining",
	"uber": "transport", "careem": "transport", "taxi": "transport", "metro": "transport", "fuel": "transport", "petrol": "transport", "adnoc": "transport", "enoc": "transport",
	"dewa": "utilities", "etisalat": "utilities", "du": "utilities", "electricity": "utilities", "internet": "utilities",
	"amazon": "shopping", "noon": "shopping", "mall": "shopping", "ikea": "shopping",
	"pharmacy": "health", "clinic": "health", "hospital": "health",
	"netflix": "entertainment", "spotify": "entertainment", "cinema": "entertainment", "vox": "entertainment",
	"rent": "housing", "landlord": "housing",
	"salary": "salary", "payroll": "salary",
	"transfer": "transfer", "transferred": "transfer",
}

// RegexParser extracts records with fixed patterns. It never calls out and is
// always available.
type RegexParser struct {
	defaultCurrency string
	now             func() time.Time
}

// NewRegexParser creates a parser that assumes defaultCurrency when the text
// names none.
func NewRegexParser(defaultCurrency string) *RegexParser {
	return &RegexParser{defaultCurrency: defaultCurrency, now: time.Now}
}

func (p *RegexParser) Parse(_ context.Context, text string) (*model.ParsedRecord, error) {
	rec, err := p.parse(text)
	observe(SourceRegex, err)
	return rec, err
}

func (p *RegexParser) parse(text string) (*model.ParsedRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	amount, cur, ok := findAmount(text)
	if !ok {
		return nil, ErrNoAmount
	}
	if cur == "" {
		cur = p.defaultCurrency
	}

	words := wordRe.FindAllString(strings.ToLower(text), -1)

	kind := model.RecordExpense
	for _, w := range words {
		if incomeWords[w] {
			kind = model.RecordIncome
			break
		}
	}

	category := "other"
	for _, w := range words {
		if c, ok := categoryWords[w]; ok {
			category = c
			break
		}
	}

	return &model.ParsedRecord{
		Kind:     kind,
		Amount:   amount,
		Currency: cur,
		Category: category,
		Merchant: findMerchant(text),
		Date:     p.findDate(text),
		Source:   SourceRegex,
		Raw:      text,
	}, nil
}

// findAmount prefers an amount tied to a currency marker and falls back to the
// first bare number.
func findAmount(text string) (decimal.Decimal, string, bool) {
	if m := prefixAmountRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[2]); ok {
			return v, marker(m[1]), true
		}
	}
	if m := suffixAmountRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return v, marker(m[2]), true
		}
	}
	for _, re := range []*regexp.Regexp{isoDateRe, slashDateRe, monthDateRe} {
		text = re.ReplaceAllString(text, " ")
	}
	for _, m := range bareAmountRe.FindAllString(text, -1) {
		if v, ok := parseAmount(m); ok && v.IsPositive() {
			return v, "", true
		}
	}
	return decimal.Zero, "", false
}

func parseAmount(s string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func marker(m string) string {
	key := strings.TrimSuffix(strings.ToLower(m), ".")
	return currencyMarkers[key]
}

func findMerchant(text string) string {
	m := merchantRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (p *RegexParser) findDate(text string) time.Time {
	layouts := []struct {
		re     *regexp.Regexp
		layout string
	}{
		{isoDateRe, "2006-01-02"},
		{slashDateRe, "2/1/2006"},
		{monthDateRe, "2-Jan-2006"},
	}
	for _, l := range layouts {
		if m := l.re.FindStringSubmatch(text); m != nil {
			if t, err := time.Parse(l.layout, m[1]); err == nil {
				return t
			}
		}
	}
	return today(p.now())
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
