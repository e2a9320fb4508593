package servicerequest

import "strings"

// DisplayState is the customer-facing outcome inferred from the record and the
// status carried back on the gateway redirect. It is never persisted.
type DisplayState string

const (
	DisplaySuccess  DisplayState = "success"
	DisplayFailed   DisplayState = "failed"
	DisplayRefunded DisplayState = "refunded"
	DisplayPending  DisplayState = "pending"
)

// IsTerminal reports whether the state is one of success, failed or refunded
func (d DisplayState) IsTerminal() bool {
	return d == DisplaySuccess || d == DisplayFailed || d == DisplayRefunded
}

// URL status values sent on the gateway return navigation
const (
	URLStatusSuccess  = "success"
	URLStatusFailed   = "failed"
	URLStatusRefunded = "refunded"
)

// NormalizeURLStatus returns the recognised redirect status, or "" when absent or unknown.
func NormalizeURLStatus(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case URLStatusSuccess, URLStatusFailed, URLStatusRefunded:
		return s
	}
	return ""
}

// IsSuccessful: the redirect said success, or there is no redirect status and the
// payment completed on a request that was not cancelled.
func IsSuccessful(urlStatus string, payment PaymentStatus, overall Status) bool {
	if u := NormalizeURLStatus(urlStatus); u != "" {
		return u == URLStatusSuccess
	}
	return payment == PaymentCompleted && overall != StatusCancelled
}

// IsFailed: the redirect said failed, or there is no redirect status and the payment
// failed, or the request was cancelled without a refund.
func IsFailed(urlStatus string, payment PaymentStatus, overall Status) bool {
	if u := NormalizeURLStatus(urlStatus); u != "" {
		return u == URLStatusFailed
	}
	return payment == PaymentFailed || (overall == StatusCancelled && payment != PaymentRefunded)
}

// IsRefunded: the redirect said refunded, or there is no redirect status and the payment was refunded.
func IsRefunded(urlStatus string, payment PaymentStatus, overall Status) bool {
	if u := NormalizeURLStatus(urlStatus); u != "" {
		return u == URLStatusRefunded
	}
	return payment == PaymentRefunded
}

// InferDisplayState resolves the predicates with priority success > failed > refunded,
// falling back to pending when none hold.
func InferDisplayState(urlStatus string, payment PaymentStatus, overall Status) DisplayState {
	switch {
	case IsSuccessful(urlStatus, payment, overall):
		return DisplaySuccess
	case IsFailed(urlStatus, payment, overall):
		return DisplayFailed
	case IsRefunded(urlStatus, payment, overall):
		return DisplayRefunded
	}
	return DisplayPending
}
