package report

import (
	"strconv"
	"strings"
)

// FormatMoney renders minor units as "USD 1,234.56".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	frac := cents % 100
	pad := ""
	if frac < 10 {
		pad = "0"
	}
	return strings.TrimSpace(currency) + " " + sign + grouped.String() + "." + pad + strconv.FormatInt(frac, 10)
}

// PlatformFee returns the fee for amount at the given basis points, rounded
// half up. The amount is split at 10000 so the product never leaves int64.
func PlatformFee(amount int64, bps int) int64 {
	if bps <= 0 || amount <= 0 {
		return 0
	}
	if bps > 10000 {
		bps = 10000
	}
	b := int64(bps)
	return amount/10000*b + (amount%10000*b+5000)/10000
}
