package storage

import (
	"context"

	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/infrastructure/config"
)

var _ listing.ImageStore = DisabledStorage{}

// DisabledStorage is used when no bucket is configured. Listings can still be
// submitted without images.
type DisabledStorage struct{}

// PresignUpload always reports that storage is not configured
func (DisabledStorage) PresignUpload(context.Context, string, string) (listing.PresignedURL, error) {
	return listing.PresignedURL{}, listing.ErrStorageNotConfigured
}

// PresignDownload always reports that storage is not configured
func (DisabledStorage) PresignDownload(context.Context, string) (listing.PresignedURL, error) {
	return listing.PresignedURL{}, listing.ErrStorageNotConfigured
}

// StatImage always reports that storage is not configured
func (DisabledStorage) StatImage(context.Context, string) (listing.ImageObject, error) {
	return listing.ImageObject{}, listing.ErrStorageNotConfigured
}

// New returns S3 storage when a bucket is configured and DisabledStorage otherwise.
func New(cfg config.StorageConfig, opts ...S3ObjectStorageOption) (listing.ImageStore, error) {
	if !cfg.Configured() {
		return DisabledStorage{}, nil
	}
	return NewS3ObjectStorage(cfg, opts...)
}
