// Package units converts free-form numeric input into typed, unit-tagged
// values before it reaches pricing or carrier logic. Money is integer minor
// units (cents) everywhere; weight is integer grams. Floating point never
// touches either.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)
var thousand = decimal.NewFromInt(1000)

// ParseCents converts a decimal amount in major units ("19.99", "19,99") to
// integer cents. Rejects negative, non-finite, and sub-cent inputs.
func ParseCents(raw string) (int64, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", raw, err)
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", raw)
	}
	return cents.IntPart(), nil
}

// CentsToDecimalString renders integer cents as a two-decimal major-unit
// string, the form wallet providers exchange ("2599" -> "25.99").
func CentsToDecimalString(cents int64) string {
	return decimal.NewFromInt(cents).Div(hundred).StringFixed(2)
}

// DecimalStringToCents converts a provider-reported major-unit amount into
// cents, rejecting anything that does not land exactly on a cent.
func DecimalStringToCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("provider amount %q: %w", raw, err)
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("provider amount %q has sub-cent precision", raw)
	}
	return cents.IntPart(), nil
}

// ParseGrams converts a weight in kilograms ("1.1", "0,25") to integer
// grams. Rejects negative and finer-than-gram inputs.
func ParseGrams(raw string) (int64, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return 0, fmt.Errorf("weight %q: %w", raw, err)
	}
	grams := d.Mul(thousand)
	if !grams.IsInteger() {
		return 0, fmt.Errorf("weight %q is finer than a gram", raw)
	}
	return grams.IntPart(), nil
}

// GramsToKilogramString renders integer grams as the three-decimal kilogram
// string carriers expect ("1100" -> "1.100").
func GramsToKilogramString(grams int64) string {
	return decimal.NewFromInt(grams).Div(thousand).StringFixed(3)
}

// PercentOf computes round(base * percent / 100) on integers, rounding half
// away from zero.
func PercentOf(baseCents int64, percent int64) int64 {
	product := decimal.NewFromInt(baseCents).Mul(decimal.NewFromInt(percent)).Div(hundred)
	return product.Round(0).IntPart()
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	// European form input writes decimals with a comma.
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if strings.Count(cleaned, ".") > 1 {
		return decimal.Zero, fmt.Errorf("malformed number")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative value")
	}
	return d, nil
}
