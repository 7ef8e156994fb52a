package validation

const vatIDLength = 9

var (
	vatIDSinglePrefixes = []string{"1", "2", "3", "5", "6", "8"}
	vatIDDoublePrefixes = []string{"45", "70", "71", "72", "74", "75", "77", "79", "90", "91", "98", "99"}
)

// IsValidVatID checks a Portuguese NIF: known prefix and mod-11 check digit.
func IsValidVatID(vatID string) bool {
	if len(vatID) != vatIDLength || !isDigits(vatID) {
		return false
	}
	if !hasPrefix(vatID[:1], vatIDSinglePrefixes) && !hasPrefix(vatID[:2], vatIDDoublePrefixes) {
		return false
	}

	total := 0
	for i := 0; i < vatIDLength-1; i++ {
		total += int(vatID[i]-'0') * (vatIDLength - i)
	}

	checkDigit := 0
	if remainder := total % 11; remainder >= 2 {
		checkDigit = 11 - remainder
	}
	return checkDigit == int(vatID[vatIDLength-1]-'0')
}

func hasPrefix(prefix string, set []string) bool {
	for _, p := range set {
		if p == prefix {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
