// Package storage persists generated artifacts and rewrites inline payloads
// to durable URLs. The filesystem store covers development and test
// environments where an object storage service is not available.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore writes artifact bytes under a base path and serves them from a
// public base URL.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. Artifacts become
// reachable at baseURL/<key>.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Write persists bytes at the given relative key and returns the durable
// URL. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return s.URL(cleanKey), nil
}

// StoreDataURI decodes an inline data URI and persists it, returning the
// durable URL. Anything that is not a data URI passes through unchanged, so
// callers can hand every artifact URL to this method.
func (s *FileStore) StoreDataURI(ctx context.Context, runID, itemID, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "data:") {
		return rawURL, nil
	}
	mime, data, err := decodeDataURI(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: decode inline artifact: %w", err)
	}
	key := fmt.Sprintf("runs/%s/%s-%s%s", runID, itemID, uuid.NewString()[:8], extensionFor(mime))
	return s.Write(ctx, key, data)
}

// URL returns the public URL for a storage key.
func (s *FileStore) URL(key string) string {
	if s.baseURL == "" {
		return "/" + strings.TrimLeft(key, "/")
	}
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func decodeDataURI(raw string) (mime string, data []byte, err error) {
	rest := strings.TrimPrefix(raw, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, errors.New("missing comma separator")
	}
	meta, payload := rest[:sep], rest[sep+1:]
	mime = meta
	base64Encoded := false
	if idx := strings.Index(meta, ";"); idx >= 0 {
		mime = meta[:idx]
		base64Encoded = strings.Contains(meta[idx:], "base64")
	}
	if base64Encoded {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, err
		}
		return mime, data, nil
	}
	return mime, []byte(payload), nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
