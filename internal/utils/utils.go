package utils

// OnlyDigits strips everything but decimal digits. Address CEPs arrive with
// dashes and dots depending on the client.
func OnlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsNumeric reports whether s is a non-empty string of decimal digits.
// Payment IDs from the processor are numeric; anything else is not a payment.
func IsNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
