package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/payment"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/money"
	"github.com/shopspring/decimal"
)

// Flat shipping rates in the reference currency.
var (
	NearShippingRate = decimal.RequireFromString("4.90")
	FarShippingRate  = decimal.RequireFromString("14.90")
)

// NearCountries are EU and EEA members.
var NearCountries = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE",
	"IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
	"IS", "LI", "NO",
}

var FarCountries = []string{
	"GB", "CH", "US", "CA", "AU", "NZ", "JP",
}

// AllowedCountries is every country the store ships to.
func AllowedCountries() []string {
	out := make([]string, 0, len(NearCountries)+len(FarCountries))
	out = append(out, NearCountries...)
	return append(out, FarCountries...)
}

// ShippingOptions prices both shipping regions in the checkout currency.
func ShippingOptions(currency string) ([]payment.ShippingOption, error) {
	near, err := money.Convert(NearShippingRate, money.ReferenceCurrency, currency)
	if err != nil {
		return nil, err
	}
	far, err := money.Convert(FarShippingRate, money.ReferenceCurrency, currency)
	if err != nil {
		return nil, err
	}
	cur := money.Normalize(currency)
	return []payment.ShippingOption{
		{DisplayName: "Standard shipping (EU/EEA)", Currency: cur, Amount: money.ToMinor(near, cur), MinDays: 2, MaxDays: 5},
		{DisplayName: "International shipping", Currency: cur, Amount: money.ToMinor(far, cur), MinDays: 5, MaxDays: 14},
	}, nil
}

// ErrUnshippableCountry is returned for a country outside both shipping regions.
var ErrUnshippableCountry = errors.New("country outside shipping regions")

// ShippingAmountFor is the rate, in minor units of currency, a buyer shipping to
// country should have been charged.
func ShippingAmountFor(country, currency string) (int64, error) {
	var rate decimal.Decimal
	switch country = strings.ToUpper(country); {
	case slices.Contains(NearCountries, country):
		rate = NearShippingRate
	case slices.Contains(FarCountries, country):
		rate = FarShippingRate
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnshippableCountry, country)
	}
	converted, err := money.Convert(rate, money.ReferenceCurrency, currency)
	if err != nil {
		return 0, err
	}
	return money.ToMinor(converted, money.Normalize(currency)), nil
}
