package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/depreciation"
	"github.com/ledgerly/networth-engine/internal/model"
)

// depreciateCmd holds the flags for the 'depreciate' subcommand.
type depreciateCmd struct {
	price     string
	purchased string
	method    string
	rate      string
	life      string
	salvage   string
	asOf      string

	out io.Writer
}

func (*depreciateCmd) Name() string     { return "depreciate" }
func (*depreciateCmd) Synopsis() string { return "compute the current value of a depreciating asset" }
func (*depreciateCmd) Usage() string {
	return `networthctl depreciate -price <amount> -purchased <date> -method <STRAIGHT_LINE|PERCENTAGE|NONE> [-rate <pct>] [-life <years>] [-salvage <amount>] [-as-of <date>]

  Prints the asset's value on the as-of date.
`
}

func (c *depreciateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.price, "price", "", "purchase price")
	f.StringVar(&c.purchased, "purchased", "", "purchase date (YYYY-MM-DD)")
	f.StringVar(&c.method, "method", string(model.MethodStraightLine), "depreciation method")
	f.StringVar(&c.rate, "rate", "", "annual rate in percent, for PERCENTAGE")
	f.StringVar(&c.life, "life", "", "useful life in years, for STRAIGHT_LINE")
	f.StringVar(&c.salvage, "salvage", "0", "salvage value floor")
	f.StringVar(&c.asOf, "as-of", "", "valuation date (YYYY-MM-DD), defaults to today")
}

func (c *depreciateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	asset, asOf, err := c.asset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := depreciation.Validate(asset); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	value := depreciation.CurrentValue(asset, asOf)
	fmt.Fprintf(out, "%s after %s years\n", value.StringFixed(depreciation.PriceScale),
		depreciation.YearsElapsed(asset.PurchaseDate, asOf).StringFixed(2))
	return subcommands.ExitSuccess
}

func (c *depreciateCmd) asset() (model.DepreciableAsset, time.Time, error) {
	var a model.DepreciableAsset
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return a, time.Time{}, fmt.Errorf("invalid -price %q", c.price)
	}
	purchased, err := parseDay(c.purchased)
	if err != nil || c.purchased == "" {
		return a, time.Time{}, fmt.Errorf("invalid -purchased %q, want YYYY-MM-DD", c.purchased)
	}
	asOf, err := parseDay(c.asOf)
	if err != nil {
		return a, time.Time{}, err
	}
	salvage, err := decimal.NewFromString(c.salvage)
	if err != nil {
		return a, time.Time{}, fmt.Errorf("invalid -salvage %q", c.salvage)
	}

	a = model.DepreciableAsset{
		PurchasePrice:       price,
		PurchaseDate:        purchased,
		Method:              model.DepreciationMethod(strings.ToUpper(c.method)),
		SalvageValue:        salvage,
		DepreciationEnabled: true,
	}
	if a.Rate, err = optional("rate", c.rate); err != nil {
		return a, time.Time{}, err
	}
	if a.UsefulLifeYears, err = optional("life", c.life); err != nil {
		return a, time.Time{}, err
	}
	return a, asOf, nil
}

func optional(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q", name, s)
	}
	return &d, nil
}
