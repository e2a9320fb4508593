// Package storage provides object storage implementations for listing images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ listing.ImageStore = (*S3ObjectStorage)(nil)

// S3ObjectStorage issues presigned URLs against any S3-compatible store
// (AWS S3, MinIO, Cloudflare R2).
type S3ObjectStorage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	presignExpiry time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// S3ObjectStorageOption is a functional option for configuring S3ObjectStorage
type S3ObjectStorageOption func(*S3ObjectStorage)

// WithLogger sets a custom logger for S3ObjectStorage
func WithLogger(logger *zap.Logger) S3ObjectStorageOption {
	return func(s *S3ObjectStorage) {
		s.logger = logger.Named("storage")
	}
}

// WithPresignExpiry overrides the configured presign lifetime
func WithPresignExpiry(d time.Duration) S3ObjectStorageOption {
	return func(s *S3ObjectStorage) {
		s.presignExpiry = d
	}
}

// NewS3ObjectStorage creates a new S3ObjectStorage from configuration.
// Static credentials are used when both keys are set; otherwise the default AWS
// credential chain applies.
func NewS3ObjectStorage(cfg config.StorageConfig, opts ...S3ObjectStorageOption) (*S3ObjectStorage, error) {
	if !cfg.Configured() {
		return nil, listing.ErrStorageNotConfigured
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage: access key id and secret access key must be set together")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("storage: invalid endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "ap-south-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	storage := &S3ObjectStorage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(storage)
	}
	if storage.presignExpiry <= 0 {
		storage.presignExpiry = 15 * time.Minute
	}
	return storage, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Called at startup for local MinIO setups; a missing permission is reported, not fatal.
func (s *S3ObjectStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: failed to check bucket: %w", err)
	}

	s.logger.Info("Creating listing image bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("storage: failed to create bucket: %w", err)
	}
	return nil
}

// PresignUpload returns a PUT URL the browser uploads one image to, with the
// headers it must send. The stored content type is checked again by StatImage
// when the listing is submitted.
func (s *S3ObjectStorage) PresignUpload(ctx context.Context, key, contentType string) (listing.PresignedURL, error) {
	if err := validateKey(key); err != nil {
		return listing.PresignedURL{}, err
	}
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return listing.PresignedURL{}, fmt.Errorf("storage: failed to presign upload: %w", err)
	}
	s.logger.Debug("Presigned image upload", zap.String("key", key))
	return listing.PresignedURL{
		URL:       req.URL,
		Method:    http.MethodPut,
		Headers:   uploadHeaders(req.SignedHeader, contentType),
		ExpiresAt: s.now().Add(s.presignExpiry),
	}, nil
}

// uploadHeaders flattens the signed headers. Host is set by the browser and
// Content-Type is always included so S3 stores the declared type.
func uploadHeaders(signed http.Header, contentType string) map[string]string {
	out := make(map[string]string, len(signed)+1)
	for name, values := range signed {
		if strings.EqualFold(name, "Host") || len(values) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(name)] = strings.Join(values, ",")
	}
	out["Content-Type"] = contentType
	return out
}

// PresignDownload returns a GET URL for an uploaded image
func (s *S3ObjectStorage) PresignDownload(ctx context.Context, key string) (listing.PresignedURL, error) {
	if err := validateKey(key); err != nil {
		return listing.PresignedURL{}, err
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return listing.PresignedURL{}, fmt.Errorf("storage: failed to presign download: %w", err)
	}
	return listing.PresignedURL{URL: req.URL, Method: http.MethodGet, ExpiresAt: s.now().Add(s.presignExpiry)}, nil
}

// StatImage reads the stored content type and size of an uploaded image
func (s *S3ObjectStorage) StatImage(ctx context.Context, key string) (listing.ImageObject, error) {
	if err := validateKey(key); err != nil {
		return listing.ImageObject{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return listing.ImageObject{}, listing.ErrImageNotFound
		}
		return listing.ImageObject{}, fmt.Errorf("storage: failed to stat object: %w", err)
	}
	return listing.ImageObject{
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}

// Bucket returns the bucket name
func (s *S3ObjectStorage) Bucket() string {
	return s.bucket
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("storage: key is required")
	}
	if !strings.HasPrefix(key, listing.ImageKeyPrefix) || strings.Contains(key, "..") {
		return fmt.Errorf("storage: key %q is outside the listing image prefix", key)
	}
	return nil
}
