package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/networth"
	"github.com/ledgerly/networth-engine/internal/report"
	"github.com/ledgerly/networth-engine/internal/valuation"
)

// valuateCmd holds the flags for the 'valuate' subcommand.
type valuateCmd struct {
	records  string
	rates    string
	asOf     string
	currency string
	base     string
	html     bool
	markdown bool

	out io.Writer
}

func (*valuateCmd) Name() string     { return "valuate" }
func (*valuateCmd) Synopsis() string { return "value a records file and print a net worth report" }
func (*valuateCmd) Usage() string {
	return `networthctl valuate -records <file> [-rates <file>] [-as-of <date>] [-currency <code>] [-base <code>] [-html|-md]

  Values every record in the JSON records file and prints the net worth
  statement. The rates file is a JSON array of {base, target, rate} quotes.
`
}

func (c *valuateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.records, "records", "records.json", "JSON file with cash, holdings, depreciable and liabilities")
	f.StringVar(&c.rates, "rates", "", "JSON file with exchange rate quotes")
	f.StringVar(&c.asOf, "as-of", "", "valuation date (YYYY-MM-DD), defaults to today")
	f.StringVar(&c.currency, "currency", "AED", "reporting currency")
	f.StringVar(&c.base, "base", "AED", "pivot currency of the rate quotes")
	f.BoolVar(&c.html, "html", false, "print a standalone HTML page")
	f.BoolVar(&c.markdown, "md", false, "print the Markdown source")
}

func (c *valuateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	asOf, err := parseDay(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	cur, err := currency.Validate(c.currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	base, err := currency.Validate(c.base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var records model.Records
	if err := readJSON(c.records, &records); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading records: %v\n", err)
		return subcommands.ExitFailure
	}
	var quotes []model.ExchangeRate
	if c.rates != "" {
		if err := readJSON(c.rates, &quotes); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading rates: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	table := currency.NewRateTable(base)
	for _, q := range quotes {
		if q.Base == "" {
			q.Base = base
		}
		table.Add(q)
	}

	stmt, err := networth.Compute(valuation.NewEngine(), records, valuation.Params{
		AsOf:              asOf,
		Rates:             table,
		ReportingCurrency: cur,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing records: %v\n", err)
		return subcommands.ExitFailure
	}

	md := report.Markdown(report.Input{Statement: stmt})
	switch {
	case c.markdown:
		fmt.Fprint(out, md)
	case c.html:
		page, err := report.Page("Net Worth", md)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprint(out, page)
	default:
		printMarkdown(out, md)
	}
	return subcommands.ExitSuccess
}
