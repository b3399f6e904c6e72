package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks that an operation amount is strictly positive.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// AddChecked returns a+b, failing instead of wrapping on overflow.
func AddChecked(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("amount overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// FormatAmount renders base units in token units, e.g. 1500000 with 6
// decimals is "1.5".
func FormatAmount(amount int64, decimals int32) string {
	return decimal.New(amount, -decimals).String()
}

// ParseAmount converts a token-unit string to base units. Fractions finer than
// the token's precision are rejected.
func ParseAmount(s string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return scaled.IntPart(), nil
}
