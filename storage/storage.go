package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Download when nothing is stored under the path
var ErrObjectNotFound = errors.New("object not found")

// Storage interface for scan image storage operations
type Storage interface {
	// Upload stores an image and returns the storage path
	Upload(ctx context.Context, fileID uuid.UUID, filename string, contentType string, data io.Reader) (string, error)

	// Download retrieves an image by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes an image by storage path
	Delete(ctx context.Context, storagePath string) error

	// PublicURL builds the address clients fetch the image from.
	// requestBase is "<scheme>://<host>" of the request that created the object.
	PublicURL(requestBase, storagePath string) string
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// UploadsRoute is the URL prefix local images are served under
const UploadsRoute = "/uploads"

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type          StorageType `yaml:"type"`
	LocalPath     string      `yaml:"localPath"`     // For local storage
	PublicBaseURL string      `yaml:"publicBaseUrl"` // Overrides the derived image URL
	S3Bucket      string      `yaml:"s3Bucket"`      // For S3 storage
	S3Region      string      `yaml:"s3Region"`      // For S3 storage
	S3Endpoint    string      `yaml:"s3Endpoint"`    // S3-compatible endpoint (MinIO etc.)
	AWSAccessKey  string      `yaml:"awsAccessKey"`
	AWSSecretKey  string      `yaml:"awsSecretKey"`
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath, cfg.PublicBaseURL)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for s3 storage")
		}
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// generateStoragePath generates a unique storage path for a scan image.
// Only the extension of the client filename survives.
func generateStoragePath(fileID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	id := fileID.String()
	return fmt.Sprintf("%s/scan-%s%s", id[:2], id, ext)
}

// joinURL glues a base URL and a slash separated path
func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out += "/" + p
	}
	return out
}
