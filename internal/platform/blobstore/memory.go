package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

type memObject struct {
	contentType string
	data        []byte
}

// MemoryStore keeps objects in process memory. Used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memObject

	// FailDelete makes Delete return an error, for exercising best-effort paths.
	FailDelete bool
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "http://localhost:5000/files"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]memObject)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return "", ErrFileTooLarge
	}
	s.mu.Lock()
	s.objects[key] = memObject{contentType: contentType, data: data}
	s.mu.Unlock()
	return s.URL(key), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return fmt.Errorf("delete %q: storage unavailable", key)
	}
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string { return joinURL(s.baseURL, key) }

func (s *MemoryStore) KeyFromURL(rawURL string) (string, error) {
	return keyFromURL(s.baseURL, rawURL)
}

// Get returns a stored object's bytes.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Serve answers GET <base>/* with the stored object, so URLs handed out by
// the store resolve while running without a bucket. Mount it on "/files/*".
func (s *MemoryStore) Serve(c echo.Context) error {
	s.mu.RLock()
	obj, ok := s.objects[c.Param("*")]
	s.mu.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return c.Blob(http.StatusOK, obj.contentType, obj.data)
}
