package exporter

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var gbp = message.NewPrinter(language.BritishEnglish)

// formatFloat formats a value with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// Currency renders a sterling amount with thousands separators, e.g. "£1,234.56".
func Currency(v float64) string {
	if v < 0 {
		return gbp.Sprintf("-£%.2f", -v)
	}
	return gbp.Sprintf("£%.2f", v)
}

// Number renders v with thousands separators and no decimals when it is whole.
func Number(v float64) string {
	if v == float64(int64(v)) {
		return gbp.Sprintf("%d", int64(v))
	}
	return gbp.Sprintf("%.2f", v)
}
