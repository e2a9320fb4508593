// Package printing renders plain-text receipts to PDF through headless Chrome.
package printing

import (
	"context"
	"errors"
	"time"
)

// ErrRenderingDisabled is returned when PDF receipts are not enabled
var ErrRenderingDisabled = errors.New("printing: PDF rendering is disabled")

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	PDFData        []byte
	PageCount      int
	RenderDuration time.Duration
}

// ReceiptRenderer turns a plain-text receipt into a PDF document
type ReceiptRenderer interface {
	RenderReceiptPDF(ctx context.Context, title, text string) (*RenderResult, error)
	Close() error
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeEmptyReceipt  = "EMPTY_RECEIPT"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// DisabledRenderer is used when printing.enabled is false
type DisabledRenderer struct{}

// RenderReceiptPDF always fails with ErrRenderingDisabled
func (DisabledRenderer) RenderReceiptPDF(context.Context, string, string) (*RenderResult, error) {
	return nil, ErrRenderingDisabled
}

// Close is a no-op
func (DisabledRenderer) Close() error { return nil }
