package utils

import (
	"strings"

	"golang.org/x/text/currency"
)

// ParseCurrencyCode validates an ISO 4217 code and returns it upper-cased.
func ParseCurrencyCode(s string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return unit.String(), nil
}

// Display symbols for the currencies visitors most often resolve to.
var currencySymbols = map[string]string{
	"ZAR": "R",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"AUD": "A$",
	"CAD": "CA$",
	"NZD": "NZ$",
	"CHF": "CHF",
	"BWP": "P",
	"NAD": "N$",
	"NGN": "₦",
	"KES": "KSh",
	"BRL": "R$",
	"KRW": "₩",
	"ILS": "₪",
	"TRY": "₺",
	"PLN": "zł",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
}

// CurrencySymbol returns the display symbol for code, or the code itself
// when no symbol is known.
func CurrencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code
}
