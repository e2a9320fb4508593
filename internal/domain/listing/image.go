package listing

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MaxImageBytes is the largest image a broker may upload
const MaxImageBytes int64 = 10 << 20

// Image storage errors
var (
	ErrStorageNotConfigured = errors.New("listing: image storage is not configured")
	ErrImageNotFound        = errors.New("listing: image not found")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// IsAllowedImageType reports whether contentType may be uploaded
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[normalizeContentType(contentType)]
	return ok
}

// PresignedURL is a time-limited URL for a single object. Headers must be
// sent unchanged with the request.
type PresignedURL struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// ImageObject is what the store reports about an uploaded image
type ImageObject struct {
	ContentType string
	Size        int64
}

// ImageStore issues presigned URLs for listing images
type ImageStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (PresignedURL, error)
	PresignDownload(ctx context.Context, key string) (PresignedURL, error)
	// StatImage returns ErrImageNotFound when nothing was uploaded under key.
	StatImage(ctx context.Context, key string) (ImageObject, error)
}

// VerifyUploaded checks a stored object against the upload rules. The stored
// content type is authoritative, not the one the broker declared.
func VerifyUploaded(obj ImageObject, maxBytes int64) error {
	if maxBytes <= 0 || maxBytes > MaxImageBytes {
		maxBytes = MaxImageBytes
	}
	if !IsAllowedImageType(obj.ContentType) {
		return shared.NewDomainError("INVALID_INPUT", "Only JPEG, PNG and WebP images are accepted")
	}
	if obj.Size > maxBytes {
		return shared.NewDomainError("INVALID_INPUT", "Image exceeds the 10 MB limit")
	}
	return nil
}

// NormalizeContentType lowercases contentType and drops parameters
func NormalizeContentType(contentType string) string {
	return normalizeContentType(contentType)
}

// UploadRequest describes an image the broker wants to upload
type UploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
}

// NewImageKey validates the upload and returns the storage key for it.
// maxBytes of zero or less falls back to MaxImageBytes.
func NewImageKey(req UploadRequest, maxBytes int64) (string, error) {
	if maxBytes <= 0 || maxBytes > MaxImageBytes {
		maxBytes = MaxImageBytes
	}
	contentType := normalizeContentType(req.ContentType)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", shared.NewDomainError("INVALID_INPUT", "Only JPEG, PNG and WebP images are accepted")
	}
	if req.Size <= 0 {
		return "", shared.NewDomainError("INVALID_INPUT", "Image size is required")
	}
	if req.Size > maxBytes {
		return "", shared.NewDomainError("INVALID_INPUT", "Image exceeds the 10 MB limit")
	}
	return ImageKeyPrefix + uuid.New().String() + "/" + SanitizeFileName(req.FileName, ext), nil
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore of the base name.
// An empty result becomes "image" plus fallbackExt.
func SanitizeFileName(name, fallbackExt string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".-")
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" {
		return "image" + fallbackExt
	}
	if path.Ext(out) == "" {
		out += fallbackExt
	}
	return out
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}
