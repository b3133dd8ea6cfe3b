package pricing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var decimalSeparators sync.Map

// Format renders a minor-unit amount for display, e.g. Format(600000, "UAH", "uk") → "6 000,00 ₴".
// The result is presentational and must never be parsed back into an amount.
func Format(amount int64, code string, locale string) string {
	code = NormalizeCurrency(code)
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%d %s", amount, code)
	}

	tag := parseLocale(locale)
	printer := message.NewPrinter(tag)

	scale, _ := currency.Standard.Rounding(unit)
	value := decimal.New(amount, -int32(scale))

	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}

	major := value.Truncate(0)
	text := printer.Sprint(number.Decimal(major.IntPart()))
	if scale > 0 {
		minor := value.Sub(major).Shift(int32(scale)).IntPart()
		text += decimalSeparator(tag, printer) + fmt.Sprintf("%0*d", scale, minor)
	}

	symbol := printer.Sprint(currency.NarrowSymbol(unit))
	if symbolAfterAmount(tag) {
		return sign + text + " " + symbol
	}
	return sign + symbol + text
}

func parseLocale(locale string) language.Tag {
	trimmed := strings.TrimSpace(locale)
	if trimmed == "" {
		return language.English
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return language.English
	}
	return tag
}

func decimalSeparator(tag language.Tag, printer *message.Printer) string {
	if sep, ok := decimalSeparators.Load(tag); ok {
		return sep.(string)
	}
	probe := printer.Sprint(number.Decimal(1.5, number.Scale(1)))
	sep := strings.TrimSuffix(strings.TrimPrefix(probe, "1"), "5")
	if sep == "" {
		sep = "."
	}
	decimalSeparators.Store(tag, sep)
	return sep
}

func symbolAfterAmount(tag language.Tag) bool {
	base, _ := tag.Base()
	switch base.String() {
	case "en", "ja", "zh", "ko", "he":
		return false
	default:
		return true
	}
}
