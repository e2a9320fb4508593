// Package whatsapp builds click-to-chat deep links with prefilled messages.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"
)

const baseURL = "https://wa.me/"

// DefaultCountryCode is prefixed to bare 10-digit numbers
const DefaultCountryCode = "91"

// Linker builds links to one business number
type Linker struct {
	phone       string
	countryCode string
}

// NewLinker returns a Linker for the given business number.
// An empty countryCode falls back to DefaultCountryCode.
func NewLinker(phone, countryCode string) *Linker {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Linker{phone: phone, countryCode: strings.TrimPrefix(countryCode, "+")}
}

// Link returns a wa.me link to the business number with message prefilled
func (l *Linker) Link(message string) string {
	return Link(NormalizePhone(l.phone, l.countryCode), message)
}

// Link returns a wa.me link for phone with message prefilled.
// An empty message yields a link without the text parameter.
func Link(phone, message string) string {
	digits := digitsOnly(phone)
	message = strings.TrimSpace(message)
	if message == "" {
		return baseURL + digits
	}
	return baseURL + digits + "?text=" + url.QueryEscape(message)
}

// NormalizePhone strips formatting and prefixes countryCode to 10-digit numbers.
func NormalizePhone(phone, countryCode string) string {
	digits := digitsOnly(phone)
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return digitsOnly(countryCode) + digits
	}
	return digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GeneralEnquiry is the default chat opener
func GeneralEnquiry() string {
	return "Hi Bhavan team, I would like to know more about co-owning a property."
}

// PropertyEnquiry asks about a specific listing
func PropertyEnquiry(title, location string) string {
	msg := fmt.Sprintf("Hi Bhavan team, I am interested in %q", strings.TrimSpace(title))
	if location = strings.TrimSpace(location); location != "" {
		msg += " in " + location
	}
	return msg + ". Please share more details."
}

// ServiceEnquiry asks about a purchased or prospective service
func ServiceEnquiry(serviceName, referenceNumber string) string {
	msg := fmt.Sprintf("Hi Bhavan team, I have a question about the %s service", strings.TrimSpace(serviceName))
	if referenceNumber = strings.TrimSpace(referenceNumber); referenceNumber != "" {
		msg += fmt.Sprintf(" (reference %s)", referenceNumber)
	}
	return msg + "."
}

// ListingSubmitted is sent by a broker after submitting a listing
func ListingSubmitted(brokerName string) string {
	return fmt.Sprintf("Hi Bhavan team, this is %s. I have just submitted a property listing for review.", strings.TrimSpace(brokerName))
}

// WithReferral appends the referral partner to a message.
// Messages are returned unchanged when affiliateID is empty.
func WithReferral(message, affiliateID string) string {
	if affiliateID == "" {
		return message
	}
	return message + "\nRef: " + affiliateID
}
