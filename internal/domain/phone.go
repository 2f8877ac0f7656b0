package domain

import "strings"

// NormalizePhone reduces a free-form phone number to E.164. Non-digits are
// stripped; a bare 10-digit number is assumed to be North American and gets a
// +1 prefix, longer numbers that already carry a country code just get the
// leading plus. Empty input stays empty.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	switch n := digits.Len(); {
	case n == 0:
		return ""
	case n == 10:
		return "+1" + digits.String()
	case n > 10:
		return "+" + digits.String()
	default:
		return digits.String()
	}
}
