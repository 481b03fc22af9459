package engine

import (
	"github.com/shopspring/decimal"
)

// ToSmallestUnit converts a human-readable amount into the asset's
// integer smallest-unit representation, flooring any excess precision.
func ToSmallestUnit(amount float64, decimals int) uint64 {
	d := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	if d.Sign() <= 0 {
		return 0
	}
	return d.BigInt().Uint64()
}

// FromSmallestUnit converts an integer smallest-unit amount back into
// human-readable units.
func FromSmallestUnit(amount uint64, decimals int) float64 {
	f, _ := decimal.NewFromUint64(amount).Shift(int32(-decimals)).Float64()
	return f
}
