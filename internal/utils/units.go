package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// uint256Digits is the number of decimal digits in 2^256-1.
const uint256Digits = 78

// ErrAmountOutOfRange is returned for amounts whose magnitude exceeds 2^256-1.
var ErrAmountOutOfRange = errors.New("amount exceeds uint256 range")

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ParseTokenAmount converts a human decimal amount ("10", "0.25") into the
// token's smallest unit, scaling by 10^decimals. Amounts finer than one
// smallest unit are rejected rather than rounded.
func ParseTokenAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return new(big.Int), nil
	}

	// The scaled value is coef * 10^shift; size it before building it.
	digits := int64(len(new(big.Int).Abs(coef).String()))
	shift := int64(d.Exponent()) + int64(decimals)
	if digits+shift > uint256Digits {
		return nil, fmt.Errorf("token amount %q: %w", s, ErrAmountOutOfRange)
	}
	if shift < 0 && -shift >= digits {
		return nil, fmt.Errorf("token amount %q has more than %d decimal places", s, decimals)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("token amount %q has more than %d decimal places", s, decimals)
	}
	v := scaled.BigInt()
	if new(big.Int).Abs(v).Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("token amount %q: %w", s, ErrAmountOutOfRange)
	}
	return v, nil
}

// FormatTokenAmount renders an amount in smallest units as a decimal token amount.
func FormatTokenAmount(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// ParseRawAmount parses an integral amount already expressed in smallest units.
func ParseRawAmount(s string) (*big.Int, error) {
	if len(strings.TrimLeft(strings.TrimLeft(s, "+-"), "0")) > uint256Digits {
		return nil, fmt.Errorf("raw amount %q: %w", s, ErrAmountOutOfRange)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount %q", s)
	}
	if new(big.Int).Abs(v).Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("raw amount %q: %w", s, ErrAmountOutOfRange)
	}
	return v, nil
}
