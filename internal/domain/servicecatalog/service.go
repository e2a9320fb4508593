// Package servicecatalog holds the fixed-price professional services offered for purchase.
package servicecatalog

import (
	"context"
	"sort"
	"strings"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Category groups services by the kind of professional delivering them
type Category string

const (
	CategoryLegal Category = "legal"
	CategoryCA    Category = "ca"
)

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	return c == CategoryLegal || c == CategoryCA
}

// Tier is a priced variant of a service
type Tier struct {
	ID          uuid.UUID
	ServiceID   uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	SortOrder   int
}

// Service is a fixed-price offering
type Service struct {
	shared.BaseEntity
	Slug        string
	Name        string
	Category    Category
	Description string
	Price       decimal.Decimal
	Currency    string
	Active      bool
	Tiers       []Tier
}

// NewService creates an active service
func NewService(slug, name string, category Category, price decimal.Decimal, currencyCode string) (*Service, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Service slug cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Service name cannot be empty")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown service category: "+string(category))
	}
	if !price.IsPositive() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Service price must be positive")
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", "Invalid currency code: "+currencyCode, err)
	}

	return &Service{
		BaseEntity: shared.NewBaseEntity(),
		Slug:       slug,
		Name:       strings.TrimSpace(name),
		Category:   category,
		Price:      price,
		Currency:   unit.String(),
		Active:     true,
	}, nil
}

// AddTier appends a priced tier to the service
func (s *Service) AddTier(name, description string, price decimal.Decimal) (*Tier, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tier name cannot be empty")
	}
	if !price.IsPositive() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tier price must be positive")
	}
	tier := Tier{
		ID:          uuid.New(),
		ServiceID:   s.ID,
		Name:        strings.TrimSpace(name),
		Description: description,
		Price:       price,
		SortOrder:   len(s.Tiers),
	}
	s.Tiers = append(s.Tiers, tier)
	return &s.Tiers[len(s.Tiers)-1], nil
}

// SortedTiers returns tiers ordered by SortOrder
func (s *Service) SortedTiers() []Tier {
	tiers := make([]Tier, len(s.Tiers))
	copy(tiers, s.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].SortOrder < tiers[j].SortOrder })
	return tiers
}

// PriceFor returns the price charged for the service, or for tierID when given.
func (s *Service) PriceFor(tierID *uuid.UUID) (decimal.Decimal, *Tier, error) {
	if !s.Active {
		return decimal.Zero, nil, shared.NewDomainError("INVALID_STATE", "Service is not currently available")
	}
	if tierID == nil {
		return s.Price, nil, nil
	}
	for i := range s.Tiers {
		if s.Tiers[i].ID == *tierID {
			return s.Tiers[i].Price, &s.Tiers[i], nil
		}
	}
	return decimal.Zero, nil, shared.NewDomainError("INVALID_INPUT", "Selected tier does not belong to this service")
}

// Deactivate hides the service from the catalog
func (s *Service) Deactivate() {
	s.Active = false
	s.Touch()
}

// ServiceRepository reads the service catalog
type ServiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Service, error)
	FindBySlug(ctx context.Context, slug string) (*Service, error)
	FindActive(ctx context.Context, category Category) ([]Service, error)
	Save(ctx context.Context, service *Service) error
}
