// Package money converts between decimal major-unit amounts and the integer minor units
// the payment processor and the cart work in, and holds the fixed exchange-rate table
// used to express reference-currency amounts (shipping) in the checkout currency.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency the fixed rates are quoted against.
const ReferenceCurrency = "EUR"

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// units of the quote currency per one EUR
var rates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("1.08"),
	"GBP": decimal.RequireFromString("0.85"),
	"SEK": decimal.RequireFromString("11.50"),
	"NOK": decimal.RequireFromString("11.70"),
	"DKK": decimal.RequireFromString("7.46"),
	"CHF": decimal.RequireFromString("0.95"),
}

var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
}

func Normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func Supported(currency string) bool {
	_, ok := rates[Normalize(currency)]
	return ok
}

// Exponent is the number of minor-unit digits for the currency.
func Exponent(currency string) int32 {
	if zeroDecimal[Normalize(currency)] {
		return 0
	}
	return 2
}

func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

// Convert re-expresses amount from one supported currency in another.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = Normalize(from), Normalize(to)
	fromRate, ok := rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	if from == to {
		return amount, nil
	}
	return amount.Div(fromRate).Mul(toRate).Round(Exponent(to)), nil
}
