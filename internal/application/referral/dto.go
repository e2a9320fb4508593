package referral

import (
	"time"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordEventRequest is a referral event reported by the site
type RecordEventRequest struct {
	AffiliateID string            `json:"affiliateId"`
	Type        string            `json:"type" binding:"required,oneof=click signup contact payment"`
	Path        string            `json:"path" binding:"max=500"`
	Metadata    map[string]string `json:"metadata"`
}

// RecordEventResult reports whether the event was stored
type RecordEventResult struct {
	Recorded bool       `json:"recorded"`
	ID       *uuid.UUID `json:"id,omitempty"`
}

// Conversion credits an affiliate with a completed purchase
type Conversion struct {
	AffiliateID     string
	ReferenceNumber string
	Amount          decimal.Decimal
	Currency        string
}

// ReferralEventResponse represents one stored event
type ReferralEventResponse struct {
	ID              uuid.UUID         `json:"id"`
	AffiliateID     string            `json:"affiliate_id"`
	Type            string            `json:"type"`
	Path            string            `json:"path,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// SummaryResponse aggregates one affiliate's activity
type SummaryResponse struct {
	AffiliateID     string           `json:"affiliate_id"`
	Counts          map[string]int64 `json:"counts"`
	Total           int64            `json:"total"`
	ConvertedAmount decimal.Decimal  `json:"converted_amount"`
}

// ListEventsQuery filters stored referral events
type ListEventsQuery struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	AffiliateID string `form:"affiliate_id"`
	Type        string `form:"type"`
}

func toReferralEventResponse(e *attribution.ReferralEvent) ReferralEventResponse {
	return ReferralEventResponse{
		ID:              e.ID,
		AffiliateID:     e.AffiliateID.String(),
		Type:            string(e.Type),
		Path:            e.Path,
		ReferenceNumber: e.ReferenceNumber,
		Amount:          e.Amount,
		Currency:        e.Currency,
		Metadata:        e.Metadata,
		OccurredAt:      e.OccurredAt,
	}
}

func toSummaryResponse(s *attribution.Summary) SummaryResponse {
	counts := make(map[string]int64, len(s.Counts))
	for t, c := range s.Counts {
		counts[string(t)] = c
	}
	return SummaryResponse{
		AffiliateID:     s.AffiliateID.String(),
		Counts:          counts,
		Total:           s.Total(),
		ConvertedAmount: s.ConvertedAmount,
	}
}
