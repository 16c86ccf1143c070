package locale

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// symbols are the display symbols for common currencies.  Other currencies
// are shown by ISO code.
var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"VND": "₫",
	"AUD": "A$",
	"CAD": "CA$",
	"CHF": "CHF",
}

// symbolFirst lists the languages that write the currency symbol before the
// amount, without a space.
var symbolFirst = map[string]bool{
	"en": true,
	"ja": true,
	"zh": true,
}

// FormatNumber formats v with the given number of decimals, using locale's
// grouping and decimal separators.
func FormatNumber(v float64, decimals int, locale string) string {
	var tag = Tag(locale, language.English)
	return message.NewPrinter(tag).Sprint(number.Decimal(v, number.Scale(decimals)))
}

// FormatCurrency formats amount in the ISO 4217 currency code for locale.
// The number of decimals is the currency's standard scale, e.g. 2 for USD and
// 0 for VND.
//
//	FormatCurrency(1234.5, "USD", "en") == "$1,234.50"
//	FormatCurrency(150000, "VND", "vi") == "150.000 ₫"
func FormatCurrency(amount float64, code, locale string) (string, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("invalid amount %v", amount)
	}
	var unit, err = currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("currency %q: %w", code, err)
	}
	var scale, _ = currency.Standard.Rounding(unit)
	var tag = Tag(locale, language.English)
	var sign = ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	var digits = message.NewPrinter(tag).Sprint(number.Decimal(amount, number.Scale(scale)))
	var symbol, ok = symbols[unit.String()]
	if !ok {
		symbol = unit.String()
	}
	var base, _ = tag.Base()
	if symbolFirst[base.String()] {
		return sign + symbol + digits, nil
	}
	return sign + digits + " " + symbol, nil
}

// dateLayouts are the display layouts per language.
var dateLayouts = map[string]string{
	"en": "January 2, 2006",
	"vi": "02/01/2006",
	"fr": "02/01/2006",
	"de": "02.01.2006",
	"es": "02/01/2006",
	"ja": "2006/01/02",
}

// FormatDate formats t for display in locale.  Languages without a known
// layout use ISO 8601 dates.
func FormatDate(t time.Time, locale string) string {
	var base, _ = Tag(locale, language.English).Base()
	var layout, ok = dateLayouts[base.String()]
	if !ok {
		layout = "2006-01-02"
	}
	return t.Format(layout)
}

// inputLayouts are the accepted forms of a date string.
var inputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a date in one of the accepted input forms.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Expand replaces {name} placeholders in msg with the given arguments.
// Placeholders without an argument are left as they are.
func Expand(msg string, args map[string]string) string {
	if len(args) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	var b strings.Builder
	for {
		var start = strings.IndexByte(msg, '{')
		if start == -1 {
			break
		}
		var end = strings.IndexByte(msg[start:], '}')
		if end == -1 {
			break
		}
		end += start
		b.WriteString(msg[:start])
		if val, ok := args[msg[start+1:end]]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(msg[start : end+1])
		}
		msg = msg[end+1:]
	}
	b.WriteString(msg)
	return b.String()
}
