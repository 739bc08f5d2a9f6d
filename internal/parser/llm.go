package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// contentGenerator is the part of *genai.Models the parser calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// LLMParser asks a Gemini model for a JSON record matching a fixed schema.
type LLMParser struct {
	gen             contentGenerator
	model           string
	defaultCurrency string
	now             func() time.Time
}

// NewLLMParser creates a parser talking to the Gemini API with apiKey.
func NewLLMParser(ctx context.Context, apiKey, model, defaultCurrency string) (*LLMParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newLLMParser(client.Models, model, defaultCurrency), nil
}

func newLLMParser(gen contentGenerator, model, defaultCurrency string) *LLMParser {
	if model == "" {
		model = DefaultModel
	}
	return &LLMParser{gen: gen, model: model, defaultCurrency: defaultCurrency, now: time.Now}
}

// llmRecord is the response shape requested from the model.
type llmRecord struct {
	Kind     string          `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Category string          `json:"category"`
	Merchant string          `json:"merchant"`
	Date     string          `json:"date"`
}

var recordSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"kind":     {Type: genai.TypeString, Enum: []string{string(model.RecordExpense), string(model.RecordIncome)}},
		"amount":   {Type: genai.TypeNumber, Description: "positive amount of the transaction"},
		"currency": {Type: genai.TypeString, Description: "ISO 4217 code"},
		"category": {Type: genai.TypeString, Description: "one lower-case word such as groceries, dining, transport, utilities, shopping, health, salary"},
		"merchant": {Type: genai.TypeString},
		"date":     {Type: genai.TypeString, Description: "YYYY-MM-DD"},
	},
	Required: []string{"kind", "amount", "currency", "category", "date"},
}

func (p *LLMParser) Parse(ctx context.Context, text string) (*model.ParsedRecord, error) {
	rec, err := p.parse(ctx, text)
	observe(SourceLLM, err)
	return rec, err
}

func (p *LLMParser) parse(ctx context.Context, text string) (*model.ParsedRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	now := today(p.now())
	prompt := fmt.Sprintf(
		"Extract the single financial transaction in the message below. Today is %s; "+
			"use it when the message has no date. Use %s when no currency is named.\n\nMessage:\n%s",
		now.Format("2006-01-02"), p.defaultCurrency, text)

	resp, err := p.gen.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recordSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("llm parse: %w", err)
	}

	var out llmRecord
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, fmt.Errorf("llm parse: decode response: %w", err)
	}
	if !out.Amount.IsPositive() {
		return nil, fmt.Errorf("llm parse: %w", ErrNoAmount)
	}

	cur, err := currency.Validate(out.Currency)
	if err != nil {
		cur = p.defaultCurrency
	}

	kind := model.RecordKind(strings.ToUpper(out.Kind))
	if kind != model.RecordIncome {
		kind = model.RecordExpense
	}

	date, err := time.Parse("2006-01-02", out.Date)
	if err != nil {
		date = now
	}

	category := strings.ToLower(strings.TrimSpace(out.Category))
	if category == "" {
		category = "other"
	}

	return &model.ParsedRecord{
		Kind:     kind,
		Amount:   out.Amount,
		Currency: cur,
		Category: category,
		Merchant: strings.TrimSpace(out.Merchant),
		Date:     date,
		Source:   SourceLLM,
		Raw:      text,
	}, nil
}
