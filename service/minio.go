package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// publicReadPolicy lets anonymous clients GET objects under properties/, which is
// where listing images land. Nothing else in the bucket becomes readable.
const publicReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/properties/*"]
  }]
}`

// MinioStorage stores listing images in a MinIO bucket readable by the site.
type MinioStorage struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioStorage(cfg *config.MinioConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket, config: cfg}, nil
}

// EnsureBucket creates the bucket on first start and opens the listing prefix
// for anonymous reads.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, fmt.Sprintf(publicReadPolicy, s.bucket)); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	logger.Info(ctx, "created image bucket", "bucket", s.bucket)
	return nil
}

func (s *MinioStorage) Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return s.PublicURL(objectName), nil
}

// PublicURL returns the URL the site uses for an object. A configured CDN base
// takes precedence over the MinIO endpoint.
func (s *MinioStorage) PublicURL(objectName string) string {
	if s.config.PublicBaseURL != "" {
		return strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + strings.TrimLeft(objectName, "/")
	}
	u := url.URL{
		Scheme: "http",
		Host:   s.config.Endpoint,
		Path:   "/" + path.Join(s.bucket, objectName),
	}
	if s.config.UseSSL {
		u.Scheme = "https"
	}
	return u.String()
}
