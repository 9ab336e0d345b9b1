package patient

import "strings"

// Phone numbers arrive with and without country code, area code, trunk prefix
// and punctuation. Everything stored or compared goes through these helpers.

// Digits strips every non-digit rune.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maxNationalDigits is the longest national number (area code + subscriber) of the default country.
const maxNationalDigits = 11

// NormalizePhone returns the canonical E.164 digits (without the plus sign).
// Numbers written with a leading plus are taken as international. Otherwise trunk
// zeros are dropped and countryCode is prepended unless the number already carries it.
func NormalizePhone(raw, countryCode string) string {
	trimmed := strings.TrimSpace(raw)
	d := Digits(trimmed)
	if strings.HasPrefix(trimmed, "+") {
		return d
	}
	d = strings.TrimLeft(d, "0")
	if d == "" || countryCode == "" {
		return d
	}
	if strings.HasPrefix(d, countryCode) && len(d) > maxNationalDigits {
		return d
	}
	return countryCode + d
}

// Suffix returns the last n digits of d, or "" when d is shorter than n.
func Suffix(d string, n int) string {
	if len(d) < n {
		return ""
	}
	return d[len(d)-n:]
}

// MaskPhone keeps the last four digits for logs.
func MaskPhone(raw string) string {
	d := Digits(raw)
	if len(d) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}
