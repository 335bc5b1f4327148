// Package currency provides currency-aware monetary amount parsing and
// formatting. Each supported currency maps to its ISO 4217 exponent, the
// number of fractional digits amounts in that currency may carry.
package currency

import (
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/windingtree/simard/pkg/errs"
)

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// exponents maps ISO 4217 currency codes to their fractional digit count.
// Currencies absent from the table are not supported by the ledger.
var exponents = map[string]int32{
	"AED": 2,
	"AUD": 2,
	"BHD": 3,
	"BRL": 2,
	"CAD": 2,
	"CHF": 2,
	"CLP": 0,
	"CNY": 2,
	"CZK": 2,
	"DKK": 2,
	"EUR": 2,
	"GBP": 2,
	"HKD": 2,
	"HUF": 2,
	"IDR": 2,
	"ILS": 2,
	"INR": 2,
	"ISK": 0,
	"JOD": 3,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"MXN": 2,
	"MYR": 2,
	"NOK": 2,
	"NZD": 2,
	"OMR": 3,
	"PHP": 2,
	"PLN": 2,
	"RON": 2,
	"SAR": 2,
	"SEK": 2,
	"SGD": 2,
	"THB": 2,
	"TND": 3,
	"TRY": 2,
	"TWD": 2,
	"USD": 2,
	"VND": 0,
	"ZAR": 2,
}

// Exponent returns the fractional digit count for a currency code.
func Exponent(code string) (int32, error) {
	exp, ok := exponents[code]
	if !ok {
		return 0, errs.Validation("not a valid currency: %s", code)
	}
	return exp, nil
}

// Parse validates a currency code: three uppercase letters and present in
// the ISO 4217 table.
func Parse(code string) (string, error) {
	if !codePattern.MatchString(code) {
		return "", errs.Validation("currency should be in ISO 4217 format, got %q", code)
	}
	if _, ok := exponents[code]; !ok {
		return "", errs.Validation("not a valid currency: %s", code)
	}
	return code, nil
}

// ParseAmount parses a decimal amount for a currency. Amounts must be
// strictly positive and carry no more fractional digits than the
// currency's exponent.
func ParseAmount(raw, code string) (decimal.Decimal, error) {
	exp, err := Exponent(code)
	if err != nil {
		return decimal.Zero, err
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errs.Validation("amount format is not decimal: %q", raw)
	}

	return ValidateAmount(amount, exp)
}

// ValidateAmount checks an already-parsed amount against a currency
// exponent.
func ValidateAmount(amount decimal.Decimal, exponent int32) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.Validation("amount must be strictly positive, got %s", amount)
	}
	if amount.Exponent() < -exponent {
		return decimal.Zero, errs.Validation("amount %s exceeds currency precision of %d digits", amount, exponent)
	}
	return amount, nil
}

// Format renders an amount with exactly the currency's fractional digits.
// Amounts are rounded half-up when they carry excess precision, which only
// happens for provider-supplied values.
func Format(amount decimal.Decimal, code string) (string, error) {
	exp, err := Exponent(code)
	if err != nil {
		return "", err
	}
	return amount.Round(exp).StringFixed(exp), nil
}
