package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/ledgerly/networth-engine/internal/model"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newRegex() *RegexParser {
	p := NewRegexParser("AED")
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestRegexParser_Table(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		kind     model.RecordKind
		amount   string
		currency string
		category string
		merchant string
		date     time.Time
	}{
		{
			name:     "bank debit sms",
			text:     "Your card XX1234 was debited AED 1,234.50 at CARREFOUR MOE on 2024-01-31.",
			kind:     model.RecordExpense,
			amount:   "1234.5",
			currency: "AED",
			category: "groceries",
			merchant: "CARREFOUR MOE",
			date:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "salary credit with suffix currency",
			text:     "Salary of 15000.00 AED credited to your account on 31/01/2024",
			kind:     model.RecordIncome,
			amount:   "15000",
			currency: "AED",
			category: "salary",
			merchant: "your account",
			date:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "dollar sign",
			text:     "Paid $12.99 to Netflix",
			kind:     model.RecordExpense,
			amount:   "12.99",
			currency: "USD",
			category: "entertainment",
			merchant: "Netflix",
			date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "rupees with month date",
			text:     "Rs. 500 spent at Uber on 5-Feb-2024",
			kind:     model.RecordExpense,
			amount:   "500",
			currency: "INR",
			category: "transport",
			merchant: "Uber",
			date:     time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "bare amount uses default currency and skips date digits",
			text:     "2024-02-10 lunch 42",
			kind:     model.RecordExpense,
			amount:   "42",
			currency: "AED",
			category: "other",
			date:     time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "word ending in rs is not rupees",
			text:     "Refund for yours 300 USD",
			kind:     model.RecordIncome,
			amount:   "300",
			currency: "USD",
			category: "other",
			date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newRegex().Parse(context.Background(), tt.text)
			require.NoError(t, err)

			assert.Equal(t, tt.kind, rec.Kind)
			assert.True(t, rec.Amount.Equal(decimal.RequireFromString(tt.amount)), "amount %s", rec.Amount)
			assert.Equal(t, tt.currency, rec.Currency)
			assert.Equal(t, tt.category, rec.Category)
			assert.Equal(t, tt.merchant, rec.Merchant)
			assert.True(t, tt.date.Equal(rec.Date), "date %s", rec.Date)
			assert.Equal(t, SourceRegex, rec.Source)
			assert.Equal(t, tt.text, rec.Raw)
		})
	}
}

func TestRegexParser_Errors(t *testing.T) {
	_, err := newRegex().Parse(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = newRegex().Parse(context.Background(), "how much did I spend on groceries?")
	assert.ErrorIs(t, err, ErrNoAmount)
}

// fakeGenerator returns a canned body or error and records the request.
type fakeGenerator struct {
	body  string
	err   error
	model string
	cfg   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.body}}},
		}},
	}, nil
}

func newLLM(gen contentGenerator) *LLMParser {
	p := newLLMParser(gen, "", "AED")
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestLLMParser_DecodesStructuredResponse(t *testing.T) {
	gen := &fakeGenerator{body: `{"kind":"income","amount":2500.75,"currency":"usd","category":"Salary","merchant":" ACME ","date":"2024-03-01"}`}

	rec, err := newLLM(gen).Parse(context.Background(), "ACME payroll 2500.75 USD")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, gen.model)
	require.NotNil(t, gen.cfg)
	assert.Equal(t, "application/json", gen.cfg.ResponseMIMEType)
	assert.Same(t, recordSchema, gen.cfg.ResponseSchema)

	assert.Equal(t, model.RecordIncome, rec.Kind)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("2500.75")))
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "salary", rec.Category)
	assert.Equal(t, "ACME", rec.Merchant)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, SourceLLM, rec.Source)
}

func TestLLMParser_NormalizesBadFields(t *testing.T) {
	gen := &fakeGenerator{body: `{"kind":"???","amount":"10","currency":"BTC","category":"","date":"yesterday"}`}

	rec, err := newLLM(gen).Parse(context.Background(), "something for 10")
	require.NoError(t, err)

	assert.Equal(t, model.RecordExpense, rec.Kind)
	assert.Equal(t, "AED", rec.Currency)
	assert.Equal(t, "other", rec.Category)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), rec.Date)
}

func TestLLMParser_Errors(t *testing.T) {
	_, err := newLLM(&fakeGenerator{err: errors.New("quota exceeded")}).Parse(context.Background(), "AED 5")
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = newLLM(&fakeGenerator{body: `not json`}).Parse(context.Background(), "AED 5")
	assert.Error(t, err)

	_, err = newLLM(&fakeGenerator{body: `{"kind":"EXPENSE","amount":0,"currency":"AED","category":"x","date":"2024-01-01"}`}).Parse(context.Background(), "AED 0")
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestFallbackParser(t *testing.T) {
	fallback := &FallbackParser{
		Primary:  newLLM(&fakeGenerator{err: errors.New("unavailable")}),
		Fallback: newRegex(),
	}

	rec, err := fallback.Parse(context.Background(), "AED 75 at Starbucks")
	require.NoError(t, err)
	assert.Equal(t, SourceRegex, rec.Source)
	assert.Equal(t, "dining", rec.Category)

	_, err = fallback.Parse(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	ok := &FallbackParser{
		Primary:  newLLM(&fakeGenerator{body: `{"kind":"EXPENSE","amount":75,"currency":"AED","category":"dining","date":"2024-03-15"}`}),
		Fallback: newRegex(),
	}
	rec, err = ok.Parse(context.Background(), "AED 75 at Starbucks")
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, rec.Source)
}

func TestNew_WithoutKeyIsRegex(t *testing.T) {
	p, err := New(context.Background(), "", "", "AED")
	require.NoError(t, err)
	_, ok := p.(*RegexParser)
	assert.True(t, ok)
}
