// Package blobstore stores uploaded medical documents in object storage.
// Only the public URL is persisted by callers; KeyFromURL recovers the
// object key when the object has to be removed.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("object not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrEmptyFile          = errors.New("file is empty")
	ErrForeignURL         = errors.New("url does not belong to this store")
)

// MaxFileSize is the largest accepted upload (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// AllowedContentTypes maps accepted MIME types to the extension used when
// the uploaded file name has none.
var AllowedContentTypes = map[string]string{
	"application/pdf":    ".pdf",
	"image/png":          ".png",
	"image/jpeg":         ".jpg",
	"image/webp":         ".webp",
	"image/gif":          ".gif",
	"application/dicom":  ".dcm",
	"text/plain":         ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// Store is an object store addressed by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(rawURL string) (string, error)
}

// Validate checks an upload before it is sent to the store.
func Validate(contentType string, size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	if _, ok := AllowedContentTypes[baseContentType(contentType)]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	return nil
}

func baseContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// RecordKey builds records/<patientID>/<uuid><ext> for an uploaded file.
func RecordKey(patientID uuid.UUID, fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" || len(ext) > 8 {
		ext = AllowedContentTypes[baseContentType(contentType)]
	}
	return fmt.Sprintf("records/%s/%s%s", patientID, uuid.New(), ext)
}

// keyFromURL strips base from rawURL and returns the remaining object key.
func keyFromURL(base, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != b.Scheme || u.Host != b.Host {
		return "", ErrForeignURL
	}
	prefix := strings.TrimRight(b.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", ErrForeignURL
	}
	key, err := url.PathUnescape(strings.TrimPrefix(u.Path, prefix))
	if err != nil {
		return "", fmt.Errorf("unescape key: %w", err)
	}
	if key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
