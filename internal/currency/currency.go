// Package currency parses and represents bridge payment amounts.
//
// Amounts travel on the wire as a single token, "<value>+<currency>",
// e.g. "5+USD". Values are decimal strings, currencies are three-letter
// alphabetic codes.
package currency

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingAmount   = errors.New("currency: missing amount")
	ErrAmountFormat    = errors.New("currency: amount token formatting error")
	ErrInvalidAmount   = errors.New("currency: invalid amount")
	ErrMissingCurrency = errors.New("currency: missing currency")
	ErrInvalidCurrency = errors.New("currency: invalid currency code")
)

var (
	validValue    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	validCurrency = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// Amount is a positive decimal value in a named currency. Immutable.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// ParseToken parses a "<value>+<currency>" token. Each failure mode has its
// own error so callers can report exactly what was wrong with the request.
func ParseToken(token string) (Amount, error) {
	if token == "" {
		return Amount{}, ErrMissingAmount
	}

	parts := strings.Split(token, "+")
	if len(parts) != 2 {
		return Amount{}, ErrAmountFormat
	}

	value, code := parts[0], parts[1]
	if value == "" {
		return Amount{}, ErrMissingAmount
	}
	if !validValue.MatchString(value) {
		return Amount{}, ErrInvalidAmount
	}
	if code == "" {
		return Amount{}, ErrMissingCurrency
	}
	if !validCurrency.MatchString(code) {
		return Amount{}, ErrInvalidCurrency
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}

	return Amount{Value: dec, Currency: strings.ToUpper(code)}, nil
}

// IsValidValue reports whether s is a plain positive decimal number.
// Shared by the quote and settlement paths for pre-flight validation.
func IsValidValue(s string) bool {
	return validValue.MatchString(strings.TrimSpace(s))
}

// IsValidCode reports whether s is a well-formed three-letter currency code.
func IsValidCode(s string) bool {
	return validCurrency.MatchString(s)
}

// Token renders the amount back into "<value>+<currency>" wire form.
func (a Amount) Token() string {
	return a.Value.String() + "+" + a.Currency
}

func (a Amount) String() string {
	return a.Value.String() + " " + a.Currency
}
