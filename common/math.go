package common

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the exponent of the chain's native unit (wei).
const NativeDecimals int32 = 18

// Amount is a user facing quantity together with the decimal exponent of
// the asset it is denominated in.
type Amount struct {
	Quantity decimal.Decimal
	Decimals int32
}

func NewAmount(quantity decimal.Decimal, decimals int32) Amount {
	return Amount{Quantity: quantity, Decimals: decimals}
}

// BaseUnits converts the amount to integer base units:
// round(quantity * 10^decimals), half away from zero.
// Example:
// - Amount{1.234, 4}.BaseUnits() = 12340
// - Amount{0.00000015, 6}.BaseUnits() = 0, which is rejected
func (a Amount) BaseUnits() (*big.Int, error) {
	if a.Decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, a.Decimals)
	}
	if !a.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, a.Quantity)
	}
	scaled := a.Quantity.Shift(a.Decimals).Round(0)
	if scaled.IsZero() {
		return nil, fmt.Errorf(
			"%w: %s is below the smallest unit of a %d decimals asset",
			ErrInvalidAmount, a.Quantity, a.Decimals,
		)
	}
	return scaled.BigInt(), nil
}

func (a Amount) String() string {
	return a.Quantity.String()
}

// BaseUnitsToDecimal converts integer base units back to a decimal quantity.
// Example:
// - BaseUnitsToDecimal(1100, 3) = 1.1
// - BaseUnitsToDecimal(1100, 5) = 0.011
func BaseUnitsToDecimal(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// ParseQuantity parses a user supplied decimal string such as "10" or "0.5".
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: `%s` is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

// ScaleGasPrice multiplies a suggested gas price by a static safety factor.
// The result is rounded up so a factor > 1 never yields the input price.
func ScaleGasPrice(price *big.Int, multiplier float64) *big.Int {
	if price == nil {
		return nil
	}
	if multiplier <= 0 {
		return new(big.Int).Set(price)
	}
	scaled := decimal.NewFromBigInt(price, 0).Mul(decimal.NewFromFloat(multiplier)).Ceil()
	return scaled.BigInt()
}
