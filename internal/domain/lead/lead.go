// Package lead captures enquiries submitted through the site's forms.
package lead

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeLead is the aggregate type name used in domain events
const AggregateTypeLead = "Lead"

const (
	maxFieldLength   = 200
	maxMessageLength = 5000
	maxDataKeys      = 50
)

// FormType identifies which site form produced the lead
type FormType string

const (
	FormContact       FormType = "contact"
	FormInterest      FormType = "interest"
	FormCallback      FormType = "callback"
	FormNewsletter    FormType = "newsletter"
	FormBrokerEnquiry FormType = "broker_enquiry"
)

// IsValid reports whether f is a known form type
func (f FormType) IsValid() bool {
	switch f {
	case FormContact, FormInterest, FormCallback, FormNewsletter, FormBrokerEnquiry:
		return true
	}
	return false
}

// Status tracks follow-up on a lead
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusClosed    Status = "closed"
)

// IsValid reports whether s is a known lead status
func (s Status) IsValid() bool {
	return s == StatusNew || s == StatusContacted || s == StatusClosed
}

// UTMParams are the campaign parameters captured with the submission
type UTMParams struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// FieldError describes one invalid form field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a submission
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid form submission: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, shared.ErrInvalidInput) match validation failures
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

// Lead is one form submission
type Lead struct {
	shared.BaseAggregateRoot
	FormType    FormType
	Name        string
	Email       string
	Phone       string
	Message     string
	Data        map[string]string
	UTM         UTMParams
	AffiliateID string
	SourcePath  string
	SubmittedAt time.Time
	Status      Status
}

// Submission is the raw input for NewLead
type Submission struct {
	FormType    FormType
	Data        map[string]string
	UTM         UTMParams
	AffiliateID string
	SourcePath  string
	SubmittedAt time.Time
}

// NewLead validates a submission and creates a lead.
// Newsletter sign-ups need an email; every other form needs a name plus an email or phone.
func NewLead(s Submission) (*Lead, error) {
	var fields []FieldError
	if !s.FormType.IsValid() {
		fields = append(fields, FieldError{Field: "formType", Message: "unknown form type"})
	}
	if len(s.Data) > maxDataKeys {
		fields = append(fields, FieldError{Field: "data", Message: "too many fields"})
	}

	data := make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		data[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	name := firstNonEmpty(data, "name", "fullName", "full_name")
	email := strings.ToLower(firstNonEmpty(data, "email"))
	phone := firstNonEmpty(data, "phone", "mobile")
	message := firstNonEmpty(data, "message", "requirements", "comments")

	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
		}
	}
	if phone != "" && !shared.IsValidPhone(phone) {
		fields = append(fields, FieldError{Field: "phone", Message: "must have 10 to 15 digits"})
	}

	switch s.FormType {
	case FormNewsletter:
		if email == "" {
			fields = append(fields, FieldError{Field: "email", Message: "is required"})
		}
	default:
		if name == "" {
			fields = append(fields, FieldError{Field: "name", Message: "is required"})
		}
		if email == "" && phone == "" {
			fields = append(fields, FieldError{Field: "email", Message: "email or phone is required"})
		}
	}
	if len(name) > maxFieldLength {
		fields = append(fields, FieldError{Field: "name", Message: "is too long"})
	}
	if len(message) > maxMessageLength {
		fields = append(fields, FieldError{Field: "message", Message: "is too long"})
	}

	if len(fields) > 0 {
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return nil, &ValidationError{Fields: fields}
	}

	submittedAt := s.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	l := &Lead{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FormType:          s.FormType,
		Name:              name,
		Email:             email,
		Phone:             phone,
		Message:           message,
		Data:              data,
		UTM:               s.UTM,
		AffiliateID:       s.AffiliateID,
		SourcePath:        s.SourcePath,
		SubmittedAt:       submittedAt.UTC(),
		Status:            StatusNew,
	}
	l.RecordEvent(NewLeadSubmittedEvent(l))
	return l, nil
}

// UpdateStatus records follow-up progress
func (l *Lead) UpdateStatus(status Status) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Unknown lead status: "+string(status))
	}
	if l.Status == StatusClosed && status != StatusClosed {
		return shared.NewDomainError("INVALID_STATE", "Closed leads cannot be reopened")
	}
	l.Status = status
	l.Touch()
	return nil
}

func firstNonEmpty(data map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := data[k]; v != "" {
			return v
		}
	}
	return ""
}

// Repository persists leads
type Repository interface {
	Save(ctx context.Context, lead *Lead) error
	FindByID(ctx context.Context, id uuid.UUID) (*Lead, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Lead, int64, error)
}
