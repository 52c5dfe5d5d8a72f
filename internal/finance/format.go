package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LongDateLayout = "January 2, 2006"
	ISODateLayout  = isoDate
)

// Round2 rounds half away from zero to paise.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatINR renders an amount with the rupee sign and Indian digit grouping,
// e.g. ₹12,34,567.50.
func FormatINR(d decimal.Decimal) string {
	return formatGrouped("₹", d)
}

// FormatINRPlain uses an "INR " prefix for outputs whose fonts lack the
// rupee sign, such as the standard PDF Type1 fonts.
func FormatINRPlain(d decimal.Decimal) string {
	return formatGrouped("INR ", d)
}

func formatGrouped(prefix string, d decimal.Decimal) string {
	fixed := d.Round(2).StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	b.WriteString(prefix)
	b.WriteString(groupIndian(intPart))
	b.WriteString(".")
	b.WriteString(frac)
	return b.String()
}

// groupIndian groups the last three digits, then pairs: 1234567 -> 12,34,567.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	parts := make([]string, 0, len(head)/2+2)
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	parts = append(parts, tail)
	return strings.Join(parts, ",")
}

func FormatLongDate(t time.Time) string { return t.Format(LongDateLayout) }

func FormatISODate(t time.Time) string { return t.Format(ISODateLayout) }
