package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorScale is the number of decimal places in the canonical currency unit.
const minorScale = 2

// AmountToDecimal converts minor units into a decimal amount (12345 -> 123.45).
func AmountToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorScale)
}

// AmountFromDecimal converts a decimal amount into minor units, rounding to
// the canonical scale (123.456 -> 12346).
func AmountFromDecimal(d decimal.Decimal) int64 {
	return d.Round(minorScale).Shift(minorScale).IntPart()
}

// ParseAmount parses a user- or model-supplied amount string into minor units.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseAmount: parsing %q: %w", s, err)
	}
	return AmountFromDecimal(d), nil
}

// FormatAmount renders minor units with the canonical scale ("123.45").
func FormatAmount(minor int64) string {
	return AmountToDecimal(minor).StringFixed(minorScale)
}
