package tips

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// amountExp is the fixed-point exponent of raw amounts (nano units).
const amountExp = -9

// displayPlaces is the number of fractional digits shown in alerts.
const displayPlaces = 3

// FormatAmount converts a raw nano-unit integer string into a display
// string with three fractional digits. Unparsable input yields "0.000".
func FormatAmount(raw string) string {
	display, _ := ParseAmount(raw)
	return display
}

// ParseAmount returns the display string for raw together with its numeric
// value. Rounding is half away from zero at the fourth fractional digit,
// so negative amounts mirror positive ones.
func ParseAmount(raw string) (string, decimal.Decimal) {
	v, ok := parseInteger(raw)
	if !ok {
		return zeroDisplay, decimal.Zero
	}
	d := decimal.NewFromBigInt(v, amountExp).Round(displayPlaces)
	return d.StringFixed(displayPlaces), d
}

var zeroDisplay = decimal.Zero.StringFixed(displayPlaces)

// parseInteger accepts an optional sign followed by decimal digits.
func parseInteger(raw string) (*big.Int, bool) {
	s := strings.TrimSpace(raw)
	digits := strings.TrimLeft(s, "+-")
	if digits == "" || len(s)-len(digits) > 1 {
		return nil, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, false
		}
	}
	return new(big.Int).SetString(s, 10)
}
