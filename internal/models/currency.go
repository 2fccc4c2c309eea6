package models

import "strings"

// Currency is the closed set of currencies an amount may be recorded in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyJPY Currency = "JPY"
	CurrencyLKR Currency = "LKR"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists every accepted currency.
func Currencies() []Currency {
	return []Currency{CurrencyUSD, CurrencyJPY, CurrencyLKR, CurrencyEUR}
}

// Valid reports whether c is one of the declared currencies.
func (c Currency) Valid() bool {
	for _, known := range Currencies() {
		if c == known {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalises user input into a Currency.
func ParseCurrency(value string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	return c, c.Valid()
}
