package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

type zipEntry struct {
	name string
	data []byte
}

func makeZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("Failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// fakeStorage records saved objects and returns mem:// references.
type fakeStorage struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: make(map[string][]byte)}
}

func (s *fakeStorage) Save(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[objectName] = data
	return "mem://" + objectName, nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// fakeImages stores any bytes and names the reference after the source.
// The body "corrupt" fails to normalize and yields the placeholder.
type fakeImages struct {
	mu     sync.Mutex
	stored []string
}

func (f *fakeImages) Normalize(ctx context.Context, data []byte, suggestedName, placeholder string) string {
	if string(data) == "corrupt" {
		return placeholder
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, suggestedName)
	return "stored://" + suggestedName
}

// fakeFetcher serves canned bodies by URL; unknown URLs behave like a 404.
type fakeFetcher struct {
	bodies map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) []byte {
	return f.bodies[rawURL]
}

// echoNaming mimics a generator that returns the fallback format.
type echoNaming struct {
	calls int
	mu    sync.Mutex
}

func (n *echoNaming) Generate(ctx context.Context, prompt string) (string, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return fmt.Sprintf("Generated: %d chars", len(prompt)), nil
}

type failingNaming struct{}

func (failingNaming) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("naming unavailable")
}
