package media

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client implements Client over an S3-compatible object store.
type S3Client struct {
	api           *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Client builds an S3Client with static credentials. A non-empty
// cfg.Endpoint points the client at a MinIO-style host.
func NewS3Client(ctx context.Context, cfg Config) (*S3Client, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.PublicBaseURL == "" {
		return nil, ErrConfig
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for self-hosted S3 endpoints.
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		api:           api,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the object under a fresh storage key.
func (c *S3Client) Upload(ctx context.Context, r io.Reader, contentType string, sizeHint int64) (Asset, error) {
	key := NewStorageKey(time.Now().UTC())

	in := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if sizeHint > 0 {
		in.ContentLength = aws.Int64(sizeHint)
	}

	if _, err := c.api.PutObject(ctx, in); err != nil {
		return Asset{}, err
	}

	return Asset{
		URL: c.publicBaseURL + "/" + key,
		Key: key,
	}, nil
}

// Delete removes an object by key. S3 DeleteObject on a missing key is a
// no-op, which gives the idempotency the callers rely on.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return err
}
