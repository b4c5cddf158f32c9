package usecase

import (
	"net/mail"
	"strings"
	"unicode"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

const kenyaCountryCode = "254"

// NormalizePhone converts a Kenyan mobile number to the 2547XXXXXXXX or
// 2541XXXXXXXX form the gateway expects. Spaces, dashes, parentheses and a
// leading plus are ignored; local 07.../01... and bare 7.../1... forms are accepted.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		case r == '+' && i == 0:
		default:
			return "", domainErrors.Invalid("phoneNumber", "phone number may only contain digits")
		}
	}

	digits := b.String()
	if digits == "" {
		return "", domainErrors.Invalid("phoneNumber", "phone number is required")
	}

	switch {
	case len(digits) == 10 && digits[0] == '0':
		digits = kenyaCountryCode + digits[1:]
	case len(digits) == 9:
		digits = kenyaCountryCode + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, kenyaCountryCode) || (digits[3] != '7' && digits[3] != '1') {
		return "", domainErrors.Invalid("phoneNumber", "phone number must be a Kenyan mobile number")
	}
	return digits, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
