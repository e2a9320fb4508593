package catalog

import (
	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TierResponse represents a priced tier of a service
type TierResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// ServiceResponse represents a service in API responses
type ServiceResponse struct {
	ID          uuid.UUID       `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Tiers       []TierResponse  `json:"tiers"`
}

// ServiceListQuery filters the public catalog
type ServiceListQuery struct {
	Category string `form:"category" binding:"omitempty,oneof=legal ca"`
}

// ToServiceResponse converts a domain Service to ServiceResponse
func ToServiceResponse(s *servicecatalog.Service) ServiceResponse {
	tiers := s.SortedTiers()
	resp := ServiceResponse{
		ID:          s.ID,
		Slug:        s.Slug,
		Name:        s.Name,
		Category:    string(s.Category),
		Description: s.Description,
		Price:       s.Price,
		Currency:    s.Currency,
		Tiers:       make([]TierResponse, len(tiers)),
	}
	for i, t := range tiers {
		resp.Tiers[i] = TierResponse{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Price:       t.Price,
		}
	}
	return resp
}
