package adapter

import (
	"github.com/yanun0323/decimal"
)

// Float converts a venue decimal to float64. Malformed values become 0.
func Float(d decimal.Decimal) float64 {
	if d == "" {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ParseFloat parses a venue string, returning 0 when it is malformed.
func ParseFloat(s string) float64 {
	d, err := decimal.New(s)
	if err != nil {
		return 0
	}
	return Float(d)
}

// Decimal renders a price or size for venue payloads.
func Decimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
