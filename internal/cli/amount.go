package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// parseCurrency validates an ISO 4217 code and returns it in canonical
// upper case.
func parseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("unknown currency %q", code)
	}
	return unit, nil
}

// minorUnits returns the number of decimal places unit is counted in.
func minorUnits(unit currency.Unit) int32 {
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// parseAmount converts a major-unit amount such as "5.60" into minor units
// of unit. More decimal places than the currency has are rejected rather
// than rounded.
func parseAmount(text string, unit currency.Unit) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", text)
	}

	scale := minorUnits(unit)
	cents := d.Shift(scale)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", text, scale, unit)
	}
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("amount %s is out of range", text)
	}
	return cents.IntPart(), nil
}

// formatAmount renders minor units in major units, e.g. 560 CNY as "5.60".
// Unknown currencies are shown as a plain minor-unit count.
func formatAmount(cents int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return strconv.FormatInt(cents, 10)
	}
	scale := minorUnits(unit)
	return decimal.New(cents, -scale).StringFixed(scale)
}
