package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShortAddress renders 0x1234…abcd.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

// FormatAmount prints amounts >= 1 with two decimals and thousands
// separators, smaller ones with four decimals.
func FormatAmount(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return groupThousands(d.StringFixed(2))
	}
	return d.StringFixed(4)
}

// FormatUpdated renders the "updated HH:MM UTC" footer of balance reports.
func FormatUpdated(t time.Time) string {
	return "updated " + t.UTC().Format("15:04") + " UTC"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
