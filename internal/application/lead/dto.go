package lead

import (
	"time"

	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/google/uuid"
)

// UTMParamsInput carries campaign parameters captured by the site
type UTMParamsInput struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Term     string `json:"term"`
	Content  string `json:"content"`
}

// SubmitFormRequest is the body of a generic form submission
type SubmitFormRequest struct {
	FormType    string            `json:"formType" binding:"required"`
	Data        map[string]string `json:"data" binding:"required"`
	Timestamp   *time.Time        `json:"timestamp"`
	UTMParams   UTMParamsInput    `json:"utmParams"`
	AffiliateID string            `json:"affiliateId"`
	SourcePath  string            `json:"sourcePath"`
}

// SubmitFormResult is returned for an accepted submission
type SubmitFormResult struct {
	ID          uuid.UUID `json:"id"`
	FormType    string    `json:"formType"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LeadResponse represents a lead in back-office responses
type LeadResponse struct {
	ID          uuid.UUID         `json:"id"`
	FormType    string            `json:"form_type"`
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Message     string            `json:"message,omitempty"`
	Data        map[string]string `json:"data"`
	UTM         UTMParamsInput    `json:"utm"`
	AffiliateID string            `json:"affiliate_id"`
	SourcePath  string            `json:"source_path,omitempty"`
	Status      string            `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ListLeadsQuery filters the lead list
type ListLeadsQuery struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir"`
	Search      string `form:"search"`
	FormType    string `form:"form_type"`
	Status      string `form:"status"`
	AffiliateID string `form:"affiliate_id"`
}

// UpdateLeadStatusRequest changes the follow-up status of a lead
type UpdateLeadStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=new contacted closed"`
}

// ToLeadResponse converts a domain Lead to LeadResponse
func ToLeadResponse(l *lead.Lead) LeadResponse {
	return LeadResponse{
		ID:       l.ID,
		FormType: string(l.FormType),
		Name:     l.Name,
		Email:    l.Email,
		Phone:    l.Phone,
		Message:  l.Message,
		Data:     l.Data,
		UTM: UTMParamsInput{
			Source:   l.UTM.Source,
			Medium:   l.UTM.Medium,
			Campaign: l.UTM.Campaign,
			Term:     l.UTM.Term,
			Content:  l.UTM.Content,
		},
		AffiliateID: l.AffiliateID,
		SourcePath:  l.SourcePath,
		Status:      string(l.Status),
		SubmittedAt: l.SubmittedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
