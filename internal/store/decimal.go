package store

import "github.com/shopspring/decimal"

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// nullableText renders an optional decimal for a $n::NUMERIC parameter;
// nil becomes SQL NULL.
func nullableText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// parseNullable reads a NUMERIC::TEXT column that may be NULL.
func parseNullable(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	v, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &v
}
