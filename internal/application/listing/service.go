// Package listing handles broker property submissions, image uploads and admin review.
package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/attribution"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ListingService handles listing submissions and review
type ListingService struct {
	repo           listing.Repository
	images         listing.ImageStore
	publisher      shared.EventPublisher
	maxUploadBytes int64
	logger         *zap.Logger
	now            func() time.Time
}

// NewListingService creates a new ListingService
func NewListingService(
	repo listing.Repository,
	images listing.ImageStore,
	publisher shared.EventPublisher,
	maxUploadBytes int64,
	log *zap.Logger,
) *ListingService {
	return &ListingService{
		repo:           repo,
		images:         images,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Named("listing"),
		now:            time.Now,
	}
}

// Submit stores a broker submission in pending state
func (s *ListingService) Submit(ctx context.Context, req SubmitListingRequest, fallbackAffiliate string) (result *SubmitListingResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "listing", "submit", attribute.String("city", req.City))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.WithTraceContext(ctx, s.logger)

	affiliate := attribution.Normalize(strings.TrimSpace(req.AffiliateID), func(candidate string) {
		log.Warn("Invalid affiliate id on listing submission, using sentinel",
			zap.String("affiliate_id", logger.Truncate(candidate, 120)))
	})
	if !affiliate.IsPresent() {
		affiliate = attribution.Normalize(fallbackAffiliate, nil)
	}

	images := make([]listing.Image, len(req.Images))
	for i, img := range req.Images {
		images[i] = listing.Image{StorageKey: img.StorageKey, ContentType: img.ContentType}
	}
	l, err := listing.NewListing(listing.NewListingParams{
		Broker: listing.Broker{
			Name:    req.Broker.Name,
			Email:   req.Broker.Email,
			Phone:   req.Broker.Phone,
			Company: req.Broker.Company,
		},
		Title:        req.Title,
		Description:  req.Description,
		PropertyType: listing.PropertyType(strings.ToLower(strings.TrimSpace(req.PropertyType))),
		City:         req.City,
		Locality:     req.Locality,
		Price:        req.Price,
		Currency:     req.Currency,
		TotalShares:  req.TotalShares,
		AreaSqFt:     req.AreaSqFt,
		Images:       images,
		AffiliateID:  affiliate.String(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.verifyImages(ctx, l.Images); err != nil {
		return nil, err
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}

	log.Info("Listing submitted",
		zap.String("listing_id", l.ID.String()),
		zap.String("property_type", string(l.PropertyType)),
		zap.Int("images", len(l.Images)))
	return &SubmitListingResult{ID: l.ID, Status: string(l.Status)}, nil
}

// InitiateImageUpload validates the file and returns a presigned PUT URL for it
func (s *ListingService) InitiateImageUpload(ctx context.Context, req ImageUploadRequest) (*ImageUploadResponse, error) {
	key, err := listing.NewImageKey(listing.UploadRequest{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	}, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	signed, err := s.images.PresignUpload(ctx, key, strings.TrimSpace(req.ContentType))
	if err != nil {
		return nil, err
	}
	return &ImageUploadResponse{
		UploadURL:  signed.URL,
		Method:     signed.Method,
		Headers:    signed.Headers,
		StorageKey: key,
		ExpiresAt:  signed.ExpiresAt,
	}, nil
}

// verifyImages checks every referenced image against what was actually
// uploaded and records the stored content type.
func (s *ListingService) verifyImages(ctx context.Context, images []listing.Image) error {
	for i := range images {
		obj, err := s.images.StatImage(ctx, images[i].StorageKey)
		if errors.Is(err, listing.ErrImageNotFound) {
			return shared.NewDomainError("INVALID_INPUT", "Image has not been uploaded: "+images[i].StorageKey)
		}
		if err != nil {
			return err
		}
		if err := listing.VerifyUploaded(obj, s.maxUploadBytes); err != nil {
			logger.WithTraceContext(ctx, s.logger).Warn("Uploaded image rejected",
				zap.String("key", images[i].StorageKey),
				zap.String("content_type", obj.ContentType),
				zap.Int64("size", obj.Size))
			return err
		}
		images[i].ContentType = listing.NormalizeContentType(obj.ContentType)
	}
	return nil
}

// ListApproved returns approved listings for the public site
func (s *ListingService) ListApproved(ctx context.Context, q PublicListQuery) (shared.Paginated[ListingResponse], error) {
	filter := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  map[string]interface{}{"status": string(listing.StatusApproved)},
	}.Normalize()
	if city := strings.TrimSpace(q.City); city != "" {
		filter.Filters["city"] = city
	}
	if pt := strings.TrimSpace(q.PropertyType); pt != "" {
		filter.Filters["property_type"] = strings.ToLower(pt)
	}

	listings, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[ListingResponse]{}, err
	}
	items := make([]ListingResponse, len(listings))
	for i := range listings {
		items[i] = toListingResponse(&listings[i], s.signImages(ctx, &listings[i]))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// GetApproved returns one approved listing. Pending and rejected listings are not found.
func (s *ListingService) GetApproved(ctx context.Context, id uuid.UUID) (*ListingResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsPublic() {
		return nil, shared.ErrNotFound
	}
	resp := toListingResponse(l, s.signImages(ctx, l))
	return &resp, nil
}

// List returns listings of any status for review
func (s *ListingService) List(ctx context.Context, q AdminListQuery) (shared.Paginated[AdminListingResponse], error) {
	filter := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Search:   q.Search,
		Filters:  map[string]interface{}{},
	}.Normalize()
	if q.Status != "" {
		if !listing.Status(q.Status).IsValid() {
			return shared.Paginated[AdminListingResponse]{}, shared.NewDomainError("INVALID_INPUT", "Unknown listing status: "+q.Status)
		}
		filter.Filters["status"] = q.Status
	}
	if q.City != "" {
		filter.Filters["city"] = q.City
	}

	listings, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[AdminListingResponse]{}, err
	}
	items := make([]AdminListingResponse, len(listings))
	for i := range listings {
		items[i] = toAdminListingResponse(&listings[i], s.signImages(ctx, &listings[i]))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// Approve publishes a pending listing
func (s *ListingService) Approve(ctx context.Context, id, adminID uuid.UUID) (*AdminListingResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.Approve(adminID, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	logger.WithTraceContext(ctx, s.logger).Info("Listing approved",
		zap.String("listing_id", id.String()),
		zap.String("admin_id", adminID.String()))
	resp := toAdminListingResponse(l, s.signImages(ctx, l))
	return &resp, nil
}

// Reject declines a pending listing
func (s *ListingService) Reject(ctx context.Context, id, adminID uuid.UUID, req RejectListingRequest) (*AdminListingResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.Reject(adminID, req.Reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	logger.WithTraceContext(ctx, s.logger).Info("Listing rejected",
		zap.String("listing_id", id.String()),
		zap.String("admin_id", adminID.String()))
	resp := toAdminListingResponse(l, s.signImages(ctx, l))
	return &resp, nil
}

func (s *ListingService) save(ctx context.Context, l *listing.Listing) error {
	if err := s.repo.Save(ctx, l); err != nil {
		return err
	}
	if err := shared.PublishAndClear(ctx, s.publisher, l); err != nil {
		logger.WithTraceContext(ctx, s.logger).Error("Failed to publish listing events",
			zap.String("listing_id", l.ID.String()), zap.Error(err))
	}
	return nil
}

// signImages presigns a GET per image. Without storage the images are listed without URLs.
func (s *ListingService) signImages(ctx context.Context, l *listing.Listing) []ImageResponse {
	out := make([]ImageResponse, 0, len(l.Images))
	for _, img := range l.Images {
		resp := ImageResponse{ContentType: img.ContentType, Position: img.Position}
		signed, err := s.images.PresignDownload(ctx, img.StorageKey)
		switch {
		case err == nil:
			resp.URL = signed.URL
		case errors.Is(err, listing.ErrStorageNotConfigured):
		default:
			logger.WithTraceContext(ctx, s.logger).Warn("Failed to presign listing image",
				zap.String("listing_id", l.ID.String()),
				zap.String("key", img.StorageKey),
				zap.Error(err))
		}
		out = append(out, resp)
	}
	return out
}
