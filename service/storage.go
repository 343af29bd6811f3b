package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnTengye/auctionhub/backend/config"
)

// ImageStorage persists normalized image bytes and returns a reference that
// can be embedded in a listing.
type ImageStorage interface {
	Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// NewImageStorage builds the backend selected by cfg.Driver.
func NewImageStorage(ctx context.Context, cfg *config.StorageConfig) (ImageStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(&cfg.Local)
	case "minio":
		svc, err := NewMinioStorage(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := svc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	case "s3":
		return NewS3Storage(ctx, &cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// LocalStorage writes images under a directory that the HTTP server exposes
// at PublicBaseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(cfg *config.LocalConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalStorage{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *LocalStorage) Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + objectName)
	dest := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.baseURL + filepath.ToSlash(clean), nil
}
