// Package parser turns free text (bank SMS, receipts, chat messages) into
// structured records. Callers depend on TextToRecordParser only; whether an
// LLM or the regex rules produced a record is visible in its Source field.
package parser

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ledgerly/networth-engine/internal/metrics"
	"github.com/ledgerly/networth-engine/internal/model"
)

var (
	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("parser: empty text")

	// ErrNoAmount is returned when no amount could be found in the text.
	ErrNoAmount = errors.New("parser: no amount found")
)

// Source values stamped on parsed records.
const (
	SourceLLM   = "llm"
	SourceRegex = "regex"
)

// TextToRecordParser extracts one record from free text.
type TextToRecordParser interface {
	Parse(ctx context.Context, text string) (*model.ParsedRecord, error)
}

// FallbackParser tries Primary and, on any error, Fallback.
type FallbackParser struct {
	Primary  TextToRecordParser
	Fallback TextToRecordParser
}

func (p *FallbackParser) Parse(ctx context.Context, text string) (*model.ParsedRecord, error) {
	rec, err := p.Primary.Parse(ctx, text)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, ErrEmptyText) {
		return nil, err
	}
	slog.Warn("primary parser failed, using fallback", "err", err)
	return p.Fallback.Parse(ctx, text)
}

// New returns the regex parser when apiKey is empty, otherwise an LLM parser
// backed by the regex parser.
func New(ctx context.Context, apiKey, model, defaultCurrency string) (TextToRecordParser, error) {
	regex := NewRegexParser(defaultCurrency)
	if strings.TrimSpace(apiKey) == "" {
		return regex, nil
	}
	llm, err := NewLLMParser(ctx, apiKey, model, defaultCurrency)
	if err != nil {
		return nil, err
	}
	return &FallbackParser{Primary: llm, Fallback: regex}, nil
}

func observe(parser string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ParseRequests.WithLabelValues(parser, result).Inc()
}
