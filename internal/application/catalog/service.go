// Package catalog serves the public catalog of fixed-price legal and CA services.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/bhavan/backend/internal/domain/servicecatalog"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ServiceCatalogService handles catalog read operations
type ServiceCatalogService struct {
	repo servicecatalog.ServiceRepository
}

// NewServiceCatalogService creates a new ServiceCatalogService
func NewServiceCatalogService(repo servicecatalog.ServiceRepository) *ServiceCatalogService {
	return &ServiceCatalogService{repo: repo}
}

// ListServices returns the active services, optionally narrowed to one category
func (s *ServiceCatalogService) ListServices(ctx context.Context, q ServiceListQuery) ([]ServiceResponse, error) {
	category := servicecatalog.Category(strings.ToLower(strings.TrimSpace(q.Category)))
	if category != "" && !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown service category: "+q.Category)
	}
	services, err := s.repo.FindActive(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceResponse, len(services))
	for i := range services {
		out[i] = ToServiceResponse(&services[i])
	}
	return out, nil
}

// GetService looks a service up by id or slug. Inactive services are not found.
func (s *ServiceCatalogService) GetService(ctx context.Context, idOrSlug string) (*ServiceResponse, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Service id or slug is required")
	}

	var (
		svc *servicecatalog.Service
		err error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		svc, err = s.repo.FindByID(ctx, id)
	} else {
		svc, err = s.repo.FindBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Service not found")
		}
		return nil, err
	}
	if !svc.Active {
		return nil, shared.NewDomainError("NOT_FOUND", "Service not found")
	}

	resp := ToServiceResponse(svc)
	return &resp, nil
}
