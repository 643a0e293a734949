package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	numberFractionDigits = 3
	usdFractionDigits    = 4
	dateTimeLayout       = "Jan 2, 2006, 3:04 PM"
)

// Number renders v with en-US digit grouping and at most three fraction digits.
// Halves round away from zero on the shortest decimal form, 1.0005 -> "1.001".
func Number(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return grouped(trimFraction(v, numberFractionDigits, 0))
}

// Percent renders a ratio as a percentage with one decimal, 0.1225 -> "12.3%".
func Percent(v float64) string {
	scaled := v * 100
	switch {
	case math.IsNaN(scaled):
		return "NaN%"
	case math.IsInf(scaled, 1):
		return "Infinity%"
	case math.IsInf(scaled, -1):
		return "-Infinity%"
	}
	d := decimal.NewFromFloat(scaled).Round(1)
	out := d.StringFixed(1)
	if d.IsZero() && scaled < 0 {
		out = "-" + out
	}
	return out + "%"
}

// USD renders a dollar amount with two to four fraction digits.
func USD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number(v)
	}
	out := grouped(trimFraction(math.Abs(v), usdFractionDigits, 2))
	if v < 0 && out != "0.00" {
		return "-$" + out
	}
	return "$" + out
}

// Contribution renders ratios in [-1, 1] as percentages and larger magnitudes as numbers.
func Contribution(v float64) string {
	if math.Abs(v) <= 1 {
		return Percent(v)
	}
	return Number(v)
}

// DateTime renders an ISO timestamp in the local zone. Unparseable input is returned unchanged.
func DateTime(value string) string {
	return DateTimeIn(value, time.Local)
}

// DateTimeIn renders an ISO timestamp in loc.
func DateTimeIn(value string, loc *time.Location) string {
	t, ok := parseTime(value, loc)
	if !ok {
		return value
	}
	return t.In(loc).Format(dateTimeLayout)
}

func parseTime(value string, loc *time.Location) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return t, true
	}
	// Date-only values are UTC; date-times without an offset are local.
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// trimFraction rounds finite v half away from zero to maxDigits and drops
// trailing zeros down to minDigits. Negative values that round to zero keep
// their sign.
func trimFraction(v float64, maxDigits, minDigits int) string {
	d := decimal.NewFromFloat(v).Round(int32(maxDigits))
	s := d.StringFixed(int32(maxDigits))
	if d.IsZero() && v < 0 {
		s = "-" + s
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if !hasFrac {
		return s
	}
	frac = strings.TrimRight(frac, "0")
	for len(frac) < minDigits {
		frac += "0"
	}
	if frac == "" {
		return intPart
	}
	return intPart + "." + frac
}

// grouped inserts thousands separators into the integer part of a decimal string.
func grouped(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}

// Count renders an integer count with grouping.
func Count(n int64) string {
	return grouped(fmt.Sprint(n))
}
