package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrConfig is returned for invalid media configuration.
var ErrConfig = errors.New("invalid media config")

// Asset is a stored media object: the public URL served to clients and the
// storage key used for later deletion.
type Asset struct {
	URL string
	Key string
}

// Client is the media-host boundary.
type Client interface {
	// Upload stores the object and returns its public URL and key.
	Upload(ctx context.Context, r io.Reader, contentType string, sizeHint int64) (Asset, error)

	// Delete removes an object by key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// Config holds the S3-compatible media host settings.
type Config struct {
	// Endpoint overrides the S3 endpoint (MinIO and friends). Empty means AWS.
	Endpoint string
	Region   string
	Bucket   string

	AccessKey string
	SecretKey string

	// PublicBaseURL is the externally served prefix for uploaded objects,
	// e.g. "https://media.example.com". Object URLs are PublicBaseURL/key.
	PublicBaseURL string
}

// LoadConfigFromEnv loads media configuration.
//
// Required:
//   - VIDRA_MEDIA_S3_BUCKET
//   - VIDRA_MEDIA_S3_ACCESS_KEY
//   - VIDRA_MEDIA_S3_SECRET_KEY
//   - VIDRA_MEDIA_PUBLIC_BASE_URL
//
// Optional:
//   - VIDRA_MEDIA_S3_ENDPOINT (for MinIO or other S3-compatible hosts)
//   - VIDRA_MEDIA_S3_REGION (default "us-east-1")
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:      strings.TrimSpace(os.Getenv("VIDRA_MEDIA_S3_ENDPOINT")),
		Region:        strings.TrimSpace(os.Getenv("VIDRA_MEDIA_S3_REGION")),
		Bucket:        strings.TrimSpace(os.Getenv("VIDRA_MEDIA_S3_BUCKET")),
		AccessKey:     strings.TrimSpace(os.Getenv("VIDRA_MEDIA_S3_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("VIDRA_MEDIA_S3_SECRET_KEY")),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("VIDRA_MEDIA_PUBLIC_BASE_URL")), "/"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.PublicBaseURL == "" {
		return Config{}, ErrConfig
	}
	return cfg, nil
}

// NewStorageKey returns a date-partitioned random object key, e.g.
// "images/2026/8/30/8f14e45f-....".
func NewStorageKey(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return fmt.Sprintf("images/%d/%d/%d/%v", now.Year(), int(now.Month()), now.Day(), uuid.New())
}
