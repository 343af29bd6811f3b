package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
)

var archiveImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// ArchiveIndex maps lower-cased file basenames to image bytes. It is
// read-only once built and safe for concurrent lookups.
type ArchiveIndex map[string][]byte

// Lookup finds an image by name, ignoring case and any directory prefix.
func (idx ArchiveIndex) Lookup(name string) ([]byte, bool) {
	if len(idx) == 0 {
		return nil, false
	}
	data, ok := idx[archiveKey(name)]
	return data, ok
}

func archiveKey(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	return strings.ToLower(path.Base(name))
}

// IndexArchive unpacks a ZIP of property images. A corrupt archive yields an
// empty index; rows depending on it fall back to the placeholder.
func IndexArchive(ctx context.Context, data []byte, maxEntryBytes int64) ArchiveIndex {
	index := make(ArchiveIndex)
	if len(data) == 0 {
		return index
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Warn(ctx, "image archive unreadable, continuing without it", "error", err)
		return make(ArchiveIndex)
	}

	for _, file := range zipReader.File {
		if ctx.Err() != nil {
			break
		}
		if file.FileInfo().IsDir() {
			continue
		}
		name := strings.ReplaceAll(file.Name, "\\", "/")
		base := path.Base(name)
		if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, "._") {
			continue
		}
		if !archiveImageExts[strings.ToLower(path.Ext(base))] {
			continue
		}
		if maxEntryBytes > 0 && file.UncompressedSize64 > uint64(maxEntryBytes) {
			logger.Warn(ctx, "archive entry too large, skipped", "entry", file.Name, "size", file.UncompressedSize64)
			continue
		}

		key := strings.ToLower(base)
		if _, exists := index[key]; exists {
			logger.Warn(ctx, "duplicate image name in archive, keeping first", "entry", file.Name)
			continue
		}

		content, err := readZipEntry(file, maxEntryBytes)
		if err != nil {
			logger.Warn(ctx, "failed to read archive entry", "entry", file.Name, "error", err)
			continue
		}
		index[key] = content
	}

	logger.Info(ctx, "image archive indexed", "images", len(index), "entries", len(zipReader.File))
	return index
}

func readZipEntry(file *zip.File, maxBytes int64) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxBytes > 0 {
		// header sizes can lie; cap what is actually inflated
		r = io.LimitReader(rc, maxBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, errEntryTooLarge
	}
	return content, nil
}
