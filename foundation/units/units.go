// Package units converts integer wei amounts to and from the decimal
// denominations shown to users.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Denominations of the network's native currency expressed as the
// power of ten of wei they represent.
const (
	Wei   int32 = 0
	Gwei  int32 = 9
	Ether int32 = 18
)

var names = map[string]int32{
	"wei":   Wei,
	"gwei":  Gwei,
	"ether": Ether,
	"eth":   Ether,
}

// Exponent returns the power of ten for the named denomination.
func Exponent(unit string) (int32, error) {
	exp, exists := names[unit]
	if !exists {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return exp, nil
}

// Format renders the wei amount in the specified denomination. A nil
// amount renders as an empty string.
func Format(wei *big.Int, exp int32) string {
	if wei == nil {
		return ""
	}
	return decimal.NewFromBigInt(wei, -exp).String()
}

// FormatUnits renders the wei amount in the named denomination.
func FormatUnits(wei *big.Int, unit string) (string, error) {
	exp, err := Exponent(unit)
	if err != nil {
		return "", err
	}
	return Format(wei, exp), nil
}

// Parse converts a decimal string in the specified denomination into wei.
// Values with more precision than wei can represent are rejected.
func Parse(value string, exp int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", value, err)
	}

	wei := d.Shift(exp)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("value %q is more precise than wei", value)
	}

	return wei.BigInt(), nil
}
