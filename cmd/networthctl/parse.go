package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/ledgerly/networth-engine/internal/config"
	"github.com/ledgerly/networth-engine/internal/parser"
)

// parseCmd holds the flags for the 'parse' subcommand.
type parseCmd struct {
	llm      bool
	currency string

	out io.Writer
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "extract an income or expense record from free text" }
func (*parseCmd) Usage() string {
	return `networthctl parse [-llm] [-currency <code>] <text>...

  Prints the parsed record as JSON. With -llm the Gemini parser is used when
  GEMINI_API_KEY is configured, falling back to the pattern parser.
`
}

func (c *parseCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.llm, "llm", false, "use the LLM parser when an API key is configured")
	f.StringVar(&c.currency, "currency", "", "default currency, defaults to REPORTING_CURRENCY")
}

func (c *parseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	text := strings.TrimSpace(strings.Join(f.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "Error: no text to parse")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	cur := cfg.ReportingCurrency
	if c.currency != "" {
		cur = strings.ToUpper(c.currency)
	}

	var p parser.TextToRecordParser = parser.NewRegexParser(cur)
	if c.llm {
		p, err = parser.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cur)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating parser: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	rec, err := p.Parse(ctx, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
