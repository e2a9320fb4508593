package shared

import "strings"

// IsValidPhone accepts 10 to 15 digits with optional +, -, (, ) and spaces.
func IsValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-() ", r):
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}
