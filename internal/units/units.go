// internal/units/units.go
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of implied decimal places of every protocol amount.
const Decimals = 18

// MaxBits is the width of a uint256 contract argument.
const MaxBits = 256

var (
	// ErrInvalidAmount is returned for input that is not a plain non-negative decimal with at most
	// 18 fractional digits that fits in a uint256.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrZeroAmount is returned when a positive amount is required.
	ErrZeroAmount = errors.New("amount must be greater than zero")
)

// ParseEther converts a human decimal string ("1.5") to its 18-decimal integer form.
// Exponent notation is rejected, as is any result wider than MaxBits.
func ParseEther(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	if strings.ContainsAny(trimmed, "eE") {
		return nil, fmt.Errorf("%w: %q uses exponent notation", ErrInvalidAmount, trimmed)
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, trimmed)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, trimmed)
	}

	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, trimmed, Decimals)
	}
	v := scaled.BigInt()
	if v.BitLen() > MaxBits {
		return nil, fmt.Errorf("%w: %q does not fit in uint256", ErrInvalidAmount, trimmed)
	}
	return v, nil
}

// ParsePositiveEther is ParseEther that also rejects zero.
func ParsePositiveEther(s string) (*big.Int, error) {
	v, err := ParseEther(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	return v, nil
}

// FormatEther renders an 18-decimal integer without trailing zeros. Nil renders as "0".
func FormatEther(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}

// ValidateAmount is a form validator for positive 18-decimal amounts.
func ValidateAmount(s string) error {
	_, err := ParsePositiveEther(s)
	return err
}
