package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath      string
	publicBaseURL string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath, publicBaseURL string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}

	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:      basePath,
		publicBaseURL: publicBaseURL,
	}, nil
}

// BasePath is the directory served under UploadsRoute
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Upload stores an image locally
func (s *LocalStorage) Upload(ctx context.Context, fileID uuid.UUID, filename string, contentType string, data io.Reader) (string, error) {
	storagePath := generateStoragePath(fileID, filename)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))

	// Create directory structure
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err = io.Copy(file, data); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, nil
}

// Download retrieves an image from local storage
func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes an image from local storage
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// PublicURL points at the static route that serves basePath
func (s *LocalStorage) PublicURL(requestBase, storagePath string) string {
	base := requestBase
	if s.publicBaseURL != "" {
		base = s.publicBaseURL
	}
	return joinURL(base, UploadsRoute, storagePath)
}
