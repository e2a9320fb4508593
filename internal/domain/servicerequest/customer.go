package servicerequest

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/bhavan/backend/internal/domain/shared"
)

const maxRequirementsLength = 2000

// Customer is the contact triple captured at purchase time, plus free-form requirements
type Customer struct {
	FullName     string
	Email        string
	Phone        string
	Requirements string
}

// Normalize trims whitespace and lowercases the email
func (c Customer) Normalize() Customer {
	return Customer{
		FullName:     strings.TrimSpace(c.FullName),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:        strings.TrimSpace(c.Phone),
		Requirements: strings.TrimSpace(c.Requirements),
	}
}

// Validate checks the contact details
func (c Customer) Validate() error {
	if c.FullName == "" {
		return shared.NewDomainError("INVALID_INPUT", "Customer name is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || !strings.Contains(c.Email, "@") {
		return shared.NewDomainError("INVALID_INPUT", "A valid email address is required")
	}
	digits := 0
	for _, r := range c.Phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return shared.NewDomainError("INVALID_INPUT", "Phone number contains invalid characters")
		}
	}
	if digits < 10 || digits > 15 {
		return shared.NewDomainError("INVALID_INPUT", "Phone number must have 10 to 15 digits")
	}
	if len(c.Requirements) > maxRequirementsLength {
		return shared.NewDomainError("INVALID_INPUT", "Requirements are too long")
	}
	return nil
}
