package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	// decoders registered for image.Decode
	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
)

var errImageTooLarge = errors.New("image exceeds pixel budget")

// ImageNormalizer re-encodes uploaded images into bounded JPEGs and saves
// them through an ImageStorage.
type ImageNormalizer struct {
	storage   ImageStorage
	maxWidth  uint
	maxHeight uint
	quality   int
	maxPixels int64
	opTimeout time.Duration
	now       func() time.Time
}

func NewImageNormalizer(storage ImageStorage, cfg *config.ImportConfig) *ImageNormalizer {
	return &ImageNormalizer{
		storage:   storage,
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		quality:   cfg.JPEGQuality,
		maxPixels: cfg.MaxPixels,
		opTimeout: time.Duration(cfg.OpTimeoutSeconds) * time.Second,
		now:       time.Now,
	}
}

// Normalize stores data and returns its reference, or placeholder when
// anything goes wrong.
func (n *ImageNormalizer) Normalize(ctx context.Context, data []byte, suggestedName, placeholder string) string {
	ref, err := n.Store(ctx, data, suggestedName)
	if err != nil {
		logger.Warn(ctx, "image normalization failed, using placeholder", "image", suggestedName, "error", err)
		return placeholder
	}
	return ref
}

// Store decodes, orients, downsizes and saves one image.
func (n *ImageNormalizer) Store(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image")
	}

	// The header alone is enough to refuse images that would not fit in memory.
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if n.maxPixels > 0 && int64(header.Width)*int64(header.Height) > n.maxPixels {
		return "", fmt.Errorf("%w: %dx%d", errImageTooLarge, header.Width, header.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if format == "jpeg" {
		img = applyOrientation(img, jpegOrientation(data))
	}

	if n.maxWidth > 0 && n.maxHeight > 0 {
		b := img.Bounds()
		if uint(b.Dx()) > n.maxWidth || uint(b.Dy()) > n.maxHeight {
			img = resize.Thumbnail(n.maxWidth, n.maxHeight, img, resize.Lanczos3)
		}
	}

	quality := n.quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	saveCtx := ctx
	if n.opTimeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(ctx, n.opTimeout)
		defer cancel()
	}

	objectName := n.objectName()
	ref, err := n.storage.Save(saveCtx, objectName, buf.Bytes(), "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	logger.Debug(ctx, "image stored", "image", suggestedName, "object", objectName, "format", format)
	return ref, nil
}

func (n *ImageNormalizer) objectName() string {
	t := n.now()
	return fmt.Sprintf("properties/%04d/%02d/%d-%s.jpg", t.Year(), int(t.Month()), t.UnixNano(), uuid.New().String()[:8])
}
