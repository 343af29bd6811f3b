package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/AnTengye/auctionhub/backend/config"
)

// S3API is the subset of the S3 client the storage needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage stores listing images in an S3 bucket.
type S3Storage struct {
	client  S3API
	bucket  string
	region  string
	baseURL string
}

func NewS3Storage(ctx context.Context, cfg *config.S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3StorageWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

func NewS3StorageWithClient(client S3API, cfg *config.S3Config) *S3Storage {
	return &S3Storage{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

func (s *S3Storage) Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.PublicURL(objectName), nil
}

func (s *S3Storage) PublicURL(objectName string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + objectName
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objectName)
}
