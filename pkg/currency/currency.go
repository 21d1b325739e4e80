// Package currency formats whole-unit money amounts for user-facing messages.
package currency

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Grouping places thousands separators into a string of digits.
type Grouping interface {
	Group(digits string) string
}

// LocaleGrouping groups digits the way the CLDR number pattern of a locale
// does: en-IN gives 12,34,567, en-US 1,234,567 and de 1.234.567.
type LocaleGrouping struct {
	printer *message.Printer
}

// NewLocaleGrouping returns the grouping used by tag.
func NewLocaleGrouping(tag language.Tag) LocaleGrouping {
	return LocaleGrouping{printer: message.NewPrinter(tag)}
}

// Group formats digits, an unsigned base-10 integer. Input that does not
// fit an int64 is returned unchanged.
func (g LocaleGrouping) Group(digits string) string {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 || g.printer == nil {
		return digits
	}
	return g.printer.Sprintf("%d", n)
}

var (
	indian  = NewLocaleGrouping(language.MustParse("en-IN"))
	western = NewLocaleGrouping(language.AmericanEnglish)
	german  = NewLocaleGrouping(language.German)
)

// Currency describes how amounts in one currency are displayed.
type Currency struct {
	Code     string
	Symbol   string
	Label    string
	Grouping Grouping
}

// Currencies lists the supported currencies, the default first.
var Currencies = []Currency{
	{Code: "INR", Symbol: "₹", Label: "Indian Rupee", Grouping: indian},
	{Code: "USD", Symbol: "$", Label: "US Dollar", Grouping: western},
	{Code: "EUR", Symbol: "€", Label: "Euro", Grouping: german},
	{Code: "GBP", Symbol: "£", Label: "British Pound", Grouping: western},
	{Code: "JPY", Symbol: "¥", Label: "Japanese Yen", Grouping: western},
	{Code: "AUD", Symbol: "A$", Label: "Australian Dollar", Grouping: western},
	{Code: "CAD", Symbol: "CA$", Label: "Canadian Dollar", Grouping: western},
}

// Default returns the default currency (INR).
func Default() Currency {
	return Currencies[0]
}

// Lookup finds a currency by ISO code.
func Lookup(code string) (Currency, error) {
	for _, c := range Currencies {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return Currency{}, fmt.Errorf("unsupported currency %q", code)
}

// FormatNumber rounds amount to whole units and groups the digits.
func (c Currency) FormatNumber(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	neg := rounded.IsNegative()
	digits := rounded.Abs().StringFixed(0)

	g := c.Grouping
	if g == nil {
		g = indian
	}
	out := g.Group(digits)
	if neg {
		return "-" + out
	}
	return out
}

// Format renders amount with the currency symbol, e.g. ₹52,000.
func (c Currency) Format(amount decimal.Decimal) string {
	return c.Symbol + c.FormatNumber(amount)
}
