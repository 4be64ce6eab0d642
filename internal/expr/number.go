package expr

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber renders v rounded to precision digits after the decimal point
// (half away from zero). A negative precision disables rounding.
//
// Integral results keep a trailing ".0" (2 -> "2.0") so numeric steps read the
// same as decimal measurements.
func FormatNumber(v float64, precision int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	d := decimal.NewFromFloat(v)
	if precision >= 0 {
		d = d.Round(int32(precision))
	}
	s := d.String()
	if s == "-0" {
		s = "0"
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatLiteral renders v at full precision, e.g. for bare scalar operands.
func FormatLiteral(v float64) string {
	return FormatNumber(v, -1)
}
