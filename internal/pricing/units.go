package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrUnknownCurrency is returned for codes that are not ISO 4217 currencies.
var ErrUnknownCurrency = errors.New("pricing: unknown currency")

// MinorUnitScale returns the number of decimal digits of the currency's minor unit.
func MinorUnitScale(code string) (int, error) {
	unit, err := currency.ParseISO(NormalizeCurrency(code))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}

// ToMinorUnits converts a decimal major-unit amount such as "60.00" to minor units. Amounts
// with more precision than the currency allows are rejected.
func ToMinorUnits(major string, code string) (int64, error) {
	scale, err := MinorUnitScale(code)
	if err != nil {
		return 0, err
	}
	value, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, fmt.Errorf("pricing: parse amount %q: %w", major, err)
	}
	minor := value.Shift(int32(scale))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("pricing: amount %q exceeds %s precision", major, NormalizeCurrency(code))
	}
	if minor.Abs().GreaterThan(decimal.New(1, 18)) {
		return 0, ErrAmountOverflow
	}
	return minor.IntPart(), nil
}

// ToMajorString renders minor units as a plain decimal string, e.g. 6000 UAH → "60.00".
func ToMajorString(amount int64, code string) (string, error) {
	scale, err := MinorUnitScale(code)
	if err != nil {
		return "", err
	}
	return decimal.New(amount, -int32(scale)).StringFixed(int32(scale)), nil
}
