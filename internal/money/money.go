// Package money holds the decimal conventions for currency amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the precision every stored amount is rounded to.
const MinorUnits = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

// Parse reads a non-negative amount such as "49.90".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: negative amount %q", s)
	}
	return d, nil
}

// ApplyPercentOff multiplies amount by (1 - pct/100).
func ApplyPercentOff(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
}

// SubtractFloor subtracts off from amount without going below zero.
func SubtractFloor(amount, off decimal.Decimal) decimal.Decimal {
	out := amount.Sub(off)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// ValidPercent reports whether pct lies in [0, 100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// Ptr returns a pointer to a copy of d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// String renders an amount with exactly two decimals.
func String(d decimal.Decimal) string {
	return d.StringFixed(MinorUnits)
}
