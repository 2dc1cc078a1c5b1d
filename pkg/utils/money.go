// Package utils provides common utility functions for glitchsite.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Locale describes how a money amount is grouped and punctuated.
type Locale struct {
	Tag     language.Tag
	Group   string // thousands separator
	Decimal string // decimal separator
	Indian  bool   // lakh/crore grouping: last 3 digits, then groups of 2
}

// Supported display locales. en-ZA groups with a no-break space and uses a
// decimal comma, matching the reference market.
var (
	LocaleZA = Locale{Tag: language.MustParse("en-ZA"), Group: "\u00a0", Decimal: ","}
	LocaleUS = Locale{Tag: language.AmericanEnglish, Group: ",", Decimal: "."}
	LocaleIN = Locale{Tag: language.MustParse("en-IN"), Group: ",", Decimal: ".", Indian: true}
	LocaleDE = Locale{Tag: language.German, Group: ".", Decimal: ","}
)

// DefaultLocale is used when a locale string cannot be matched.
var DefaultLocale = LocaleZA

var supportedLocales = []Locale{LocaleZA, LocaleUS, LocaleIN, LocaleDE}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(supportedLocales))
	for i, l := range supportedLocales {
		tags[i] = l.Tag
	}
	return language.NewMatcher(tags)
}()

// ParseLocale matches a BCP 47 tag (e.g., "en-ZA", "de") against the
// supported display locales. Unknown or malformed tags yield DefaultLocale.
func ParseLocale(s string) Locale {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return DefaultLocale
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return DefaultLocale
	}
	return supportedLocales[idx]
}

// String returns the locale's BCP 47 tag.
func (l Locale) String() string {
	return l.Tag.String()
}

// FormatMoney formats an amount with a currency symbol, rounded to exactly
// two decimal places and grouped per locale.
// e.g., ("R", 17000, LocaleZA) → "R17 000,00", ("$", 1234.5, LocaleUS) → "$1,234.50"
func FormatMoney(symbol string, amount decimal.Decimal, loc Locale) string {
	negative := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	formatted := groupDigits(intPart, loc) + loc.Decimal + fracPart

	// Rounding may have produced zero from a tiny negative amount.
	if negative && fixed != "0.00" {
		return "-" + symbol + formatted
	}
	return symbol + formatted
}

// FormatFloat is FormatMoney for float64 amounts.
func FormatFloat(symbol string, amount float64, loc Locale) string {
	return FormatMoney(symbol, decimal.NewFromFloat(amount), loc)
}

// groupDigits inserts the locale's group separator into a string of digits.
func groupDigits(s string, loc Locale) string {
	if len(s) <= 3 {
		return s
	}
	if loc.Indian {
		return formatIndianNumber(s, loc.Group)
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(loc.Group)
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatIndianNumber groups digits Indian style (last 3, then 2s).
func formatIndianNumber(s, sep string) string {
	length := len(s)

	// Take the last 3 digits
	result := s[length-3:]
	remaining := s[:length-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + sep + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + sep + result
			remaining = ""
		}
	}

	return result
}
