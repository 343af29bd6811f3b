package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
)

var (
	errTooManyRedirects = errors.New("too many redirects")
	errEntryTooLarge    = errors.New("content exceeds size limit")
)

// ImageFetcher downloads remote images. It follows 301/302 itself so that
// every hop gets its own timeout and the hop count stays bounded.
type ImageFetcher struct {
	httpClient   *http.Client
	hopTimeout   time.Duration
	maxRedirects int
	maxBytes     int64
}

func NewImageFetcher(cfg *config.ImportConfig) *ImageFetcher {
	return &ImageFetcher{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		hopTimeout:   time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		maxRedirects: cfg.MaxRedirects,
		maxBytes:     cfg.MaxImageBytes,
	}
}

// Fetch returns the body of rawURL, or nil when the image cannot be retrieved
// for any reason. Failures are logged at debug level only.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) []byte {
	data, err := f.fetch(ctx, rawURL)
	if err != nil {
		logger.Debug(ctx, "remote image fetch failed", "url", rawURL, "error", err)
		return nil
	}
	return data
}

func (f *ImageFetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	for hop := 0; ; hop++ {
		data, next, err := f.fetchOnce(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return data, nil
		}
		if hop >= f.maxRedirects {
			return nil, errTooManyRedirects
		}
		current = next
	}
}

// fetchOnce performs a single hop. It returns either the body or the resolved
// redirect target.
func (f *ImageFetcher) fetchOnce(ctx context.Context, target *url.URL) ([]byte, *url.URL, error) {
	hopCtx := ctx
	if f.hopTimeout > 0 {
		var cancel context.CancelFunc
		hopCtx, cancel = context.WithTimeout(ctx, f.hopTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusMovedPermanently, http.StatusFound:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, nil, fmt.Errorf("redirect %d without location", resp.StatusCode)
		}
		next, err := target.Parse(loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redirect location: %w", err)
		}
		return nil, next, nil
	default:
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, nil, errEntryTooLarge
	}
	return data, nil, nil
}
