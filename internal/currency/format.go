package currency

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var symbols = map[string]string{
	"USD": "$",
	"JPY": "¥",
	"LKR": "Rs",
	"EUR": "€",
}

var printer = message.NewPrinter(language.English)

// Format renders amount with the currency symbol and thousands separators,
// for example "¥1,500" or "Rs12,000.5". Unknown codes are used as the prefix.
func Format(amount float64, code string) string {
	code = strings.ToUpper(code)
	symbol, ok := symbols[code]
	if !ok {
		symbol = code
	}
	return symbol + printer.Sprint(number.Decimal(amount, number.MaxFractionDigits(2)))
}
