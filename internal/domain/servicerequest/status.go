package servicerequest

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PaymentStatus is the state of the current payment attempt
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Label returns the human-readable payment status
func (s PaymentStatus) Label() string {
	return titleLabel(string(s))
}

// Status is the overall status of a service request
type Status string

const (
	StatusPaymentPending Status = "payment_pending"
	StatusPaymentFailed  Status = "payment_failed"
	StatusPaid           Status = "paid"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusPaymentPending, StatusPaymentFailed, StatusPaid, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// Label returns the human-readable status, e.g. "Payment Pending"
func (s Status) Label() string {
	return titleLabel(string(s))
}

// NextStep describes what the customer can expect next
func (s Status) NextStep() string {
	switch s {
	case StatusPaymentPending:
		return "Complete your payment to confirm the request."
	case StatusPaymentFailed:
		return "Your payment did not go through. Retry the payment using your reference number."
	case StatusPaid:
		return "Our team will assign a professional and contact you within 1 business day."
	case StatusInProgress:
		return "A professional is working on your request. You will be notified when it is complete."
	case StatusCompleted:
		return "Your request is complete. Download your receipt for your records."
	case StatusCancelled:
		return "This request was cancelled. Contact support if you believe this is a mistake."
	case StatusRefunded:
		return "Your payment has been refunded. Refunds usually reach your account within 5 to 7 business days."
	}
	return ""
}

func titleLabel(raw string) string {
	// cases.Caser is stateful and must not be shared.
	return cases.Title(language.English).String(strings.ReplaceAll(raw, "_", " "))
}
