package common

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBaseUnits(t *testing.T) {
	cases := []struct {
		quantity string
		decimals int32
		want     string
	}{
		{"1.234", 4, "12340"},
		{"10", 6, "10000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.0000005", 6, "1000001"},
		{"3", 0, "3"},
	}
	for _, c := range cases {
		units, err := NewAmount(decimal.RequireFromString(c.quantity), c.decimals).BaseUnits()
		require.NoError(t, err, c.quantity)
		require.Equal(t, c.want, units.String(), c.quantity)
	}
}

func TestBaseUnitsRejectsInvalidAmounts(t *testing.T) {
	for _, q := range []string{"0", "-1", "0.00000015"} {
		_, err := NewAmount(decimal.RequireFromString(q), 6).BaseUnits()
		require.ErrorIs(t, err, ErrInvalidAmount, q)
		require.ErrorIs(t, err, ErrValidation, q)
	}
}

func TestBaseUnitsToDecimal(t *testing.T) {
	require.Equal(t, "1.1", BaseUnitsToDecimal(big.NewInt(1100), 3).String())
	require.Equal(t, "0.011", BaseUnitsToDecimal(big.NewInt(1100), 5).String())
	require.True(t, BaseUnitsToDecimal(nil, 18).IsZero())
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	cases := []struct {
		quantity string
		decimals int32
	}{
		{"0.5", 0},
		{"1.5", 0},
		{"2.5", 0},
		{"1.23456789", 6},
		{"1.2345675", 6},
		{"0.000000000000000001", 18},
		{"123456789.123456789123456789", 18},
		{"42", 8},
	}
	for _, c := range cases {
		q := decimal.RequireFromString(c.quantity)
		units, err := NewAmount(q, c.decimals).BaseUnits()
		require.NoError(t, err, c.quantity)
		back := BaseUnitsToDecimal(units, c.decimals)
		require.True(t, back.Equal(q.Round(c.decimals)), "%s with %d decimals came back as %s", c.quantity, c.decimals, back)
	}
}

func TestParseQuantity(t *testing.T) {
	d, err := ParseQuantity("0.25")
	require.NoError(t, err)
	require.Equal(t, "0.25", d.String())

	_, err = ParseQuantity("ten")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestScaleGasPrice(t *testing.T) {
	require.Equal(t, big.NewInt(11_000_000_000), ScaleGasPrice(big.NewInt(10_000_000_000), 1.1))
	require.Equal(t, big.NewInt(2), ScaleGasPrice(big.NewInt(1), 1.1))
	require.Equal(t, big.NewInt(7), ScaleGasPrice(big.NewInt(7), 0))
	require.Nil(t, ScaleGasPrice(nil, 1.1))
}
