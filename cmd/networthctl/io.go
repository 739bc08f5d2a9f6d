package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ledgerly/networth-engine/internal/report"
)

var style = os.Getenv("GLAMOUR_STYLE")

// printMarkdown renders md for the terminal, falling back to the raw source.
func printMarkdown(w io.Writer, md string) {
	s := style
	if s == "" {
		s = "dark"
	}
	out, err := report.Terminal(md, s, 100)
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, out)
}

// readJSON decodes the JSON file at name into v.
func readJSON(name string, v any) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// parseDay reads a YYYY-MM-DD date, or returns today when s is empty.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
