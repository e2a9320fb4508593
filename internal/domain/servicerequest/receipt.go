package servicerequest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	receiptWidth      = 56
	receiptTimeLayout = "02 Jan 2006, 15:04 UTC"
	notAvailable      = "N/A"
)

// ReceiptFileName returns the download name for a receipt
func ReceiptFileName(referenceNumber string) string {
	return "bhavan-receipt-" + referenceNumber + ".txt"
}

// ReceiptPDFFileName returns the download name for a PDF receipt
func ReceiptPDFFileName(referenceNumber string) string {
	return "bhavan-receipt-" + referenceNumber + ".pdf"
}

// GenerateReceipt renders the request as a fixed-layout plain-text receipt.
// Output depends only on the record: the same record always yields the same bytes.
func GenerateReceipt(r *ServiceRequest) string {
	var b strings.Builder
	heavy := strings.Repeat("=", receiptWidth)
	light := strings.Repeat("-", receiptWidth)

	b.WriteString(heavy + "\n")
	b.WriteString(center("BHAVAN", receiptWidth) + "\n")
	b.WriteString(center("Service Request Receipt", receiptWidth) + "\n")
	b.WriteString(heavy + "\n\n")

	field(&b, "Reference Number", r.ReferenceNumber)
	field(&b, "Request Date", formatTime(r.CreatedAt))
	b.WriteString("\n")

	section(&b, "CUSTOMER INFORMATION", light)
	field(&b, "Name", r.Customer.FullName)
	field(&b, "Email", r.Customer.Email)
	field(&b, "Phone", r.Customer.Phone)
	b.WriteString("\n")

	section(&b, "SERVICE DETAILS", light)
	field(&b, "Service", r.ServiceName)
	if r.TierName != "" {
		field(&b, "Package", r.TierName)
	}
	if r.Customer.Requirements != "" {
		field(&b, "Requirements", strings.Join(strings.Fields(r.Customer.Requirements), " "))
	}
	b.WriteString("\n")

	section(&b, "PAYMENT INFORMATION", light)
	field(&b, "Amount", FormatMoney(r.Payment.Amount, r.Payment.Currency))
	field(&b, "Payment Status", r.Payment.Status.Label())
	field(&b, "Transaction ID", orNA(r.Payment.TransactionID))
	if r.Payment.CompletedAt != nil {
		field(&b, "Paid On", formatTime(*r.Payment.CompletedAt))
	} else {
		field(&b, "Paid On", notAvailable)
	}
	b.WriteString("\n")

	section(&b, "CURRENT STATUS", light)
	field(&b, "Status", r.Status.Label())
	field(&b, "Last Updated", formatTime(r.UpdatedAt))
	if next := r.EstimatedNextStep(); next != "" {
		field(&b, "Next Step", next)
	}
	b.WriteString("\n")

	b.WriteString(heavy + "\n")
	b.WriteString("Thank you for choosing Bhavan.\n")
	b.WriteString("Quote your reference number for any support queries.\n")
	return b.String()
}

// FormatMoney renders an amount as "INR 4,999.00"
func FormatMoney(amount decimal.Decimal, currencyCode string) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(ch)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s %s%s.%s", currencyCode, sign, grouped.String(), frac)
}

func section(b *strings.Builder, title, rule string) {
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")
}

func field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-18s %s\n", label+":", value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(receiptTimeLayout)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
