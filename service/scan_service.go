package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"corncare-backend/models"
	"corncare-backend/repository"
	"corncare-backend/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// MaxImageSize is the upload ceiling for scan images
	MaxImageSize = 5 * 1024 * 1024
	// ScanListLimit caps the scan listing
	ScanListLimit = 50
)

var allowedImageTypes = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg"},
	".jpeg": {"image/jpeg", "image/jpg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
}

// ScanService handles scan uploads and lookups
type ScanService struct {
	scanRepo ScanStore
	userRepo UserStore
	storage  storage.Storage
	log      logrus.FieldLogger
}

// ScanServiceOption is a functional option for ScanService
type ScanServiceOption func(*ScanService)

// WithScanRepository sets the scan repository
func WithScanRepository(repo ScanStore) ScanServiceOption {
	return func(s *ScanService) {
		s.scanRepo = repo
	}
}

// WithScanUserRepository sets the user repository used to link scans
func WithScanUserRepository(repo UserStore) ScanServiceOption {
	return func(s *ScanService) {
		s.userRepo = repo
	}
}

// WithStorage sets the image storage backend
func WithStorage(st storage.Storage) ScanServiceOption {
	return func(s *ScanService) {
		s.storage = st
	}
}

// WithScanLogger sets the logger
func WithScanLogger(log logrus.FieldLogger) ScanServiceOption {
	return func(s *ScanService) {
		s.log = log
	}
}

// NewScanService creates a new scan service
func NewScanService(opts ...ScanServiceOption) *ScanService {
	s := &ScanService{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateScanRequest represents an upload of one scan
type CreateScanRequest struct {
	UserID uuid.UUID

	// Image is nil when the multipart field was missing
	Image       io.Reader
	Filename    string
	ContentType string
	Size        int64

	DiseaseName string
	Confidence  string
	Prediction  string
	Notes       *string

	// RequestBase is "<scheme>://<host>" used to build local image URLs
	RequestBase string
}

// CreateScanResult represents the stored scan
type CreateScanResult struct {
	Scan *models.Scan
}

type validatedScan struct {
	ext        string
	image      []byte
	confidence float64
	prediction models.Prediction
	disease    string
}

// validate checks every field and reads the image into memory, before anything is persisted
func (req CreateScanRequest) validate() (*validatedScan, error) {
	if req.Image == nil {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	mimes, ok := allowedImageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: only jpeg, jpg, png and gif images are allowed", ErrValidation)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(req.ContentType, ";")[0]))
	if !slices.Contains(mimes, contentType) {
		return nil, fmt.Errorf("%w: only jpeg, jpg, png and gif images are allowed", ErrValidation)
	}

	if req.Size > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, MaxImageSize)
	}

	disease := strings.TrimSpace(req.DiseaseName)
	if disease == "" {
		return nil, fmt.Errorf("%w: diseaseName is required", ErrValidation)
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(req.Confidence), 64)
	if err != nil || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return nil, fmt.Errorf("%w: confidence must be a number", ErrValidation)
	}

	prediction := strings.TrimSpace(req.Prediction)
	if prediction == "" || !json.Valid([]byte(prediction)) {
		return nil, fmt.Errorf("%w: prediction must be valid JSON", ErrValidation)
	}

	// the declared size can lie, so read at most one byte past the ceiling
	data, err := io.ReadAll(io.LimitReader(req.Image, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, MaxImageSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrValidation)
	}

	return &validatedScan{
		ext:        ext,
		image:      data,
		confidence: confidence,
		prediction: models.Prediction(prediction),
		disease:    disease,
	}, nil
}

// CreateScan validates the upload, stores the image, records the scan and links it to the user
func (s *ScanService) CreateScan(ctx context.Context, req CreateScanRequest) (*CreateScanResult, error) {
	if s.scanRepo == nil || s.userRepo == nil || s.storage == nil {
		return nil, errors.New("scan service not fully configured")
	}

	v, err := req.validate()
	if err != nil {
		return nil, err
	}

	scanID := uuid.New()
	path, err := s.storage.Upload(ctx, scanID, "scan"+v.ext, req.ContentType, bytes.NewReader(v.image))
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	scan := &models.Scan{
		ID:          scanID,
		UserID:      req.UserID,
		ImageURL:    s.storage.PublicURL(req.RequestBase, path),
		ImagePath:   path,
		DiseaseName: v.disease,
		Confidence:  v.confidence,
		Prediction:  v.prediction,
		Notes:       req.Notes,
	}

	if err := s.scanRepo.Create(ctx, scan); err != nil {
		if delErr := s.storage.Delete(ctx, path); delErr != nil {
			s.log.WithError(delErr).WithField("path", path).Warn("failed to remove orphaned scan image")
		}
		return nil, fmt.Errorf("create scan: %w", err)
	}

	if err := s.userRepo.AppendScan(ctx, req.UserID, scan.ID); err != nil {
		return nil, fmt.Errorf("link scan to user: %w", err)
	}

	return &CreateScanResult{Scan: scan}, nil
}

// ListScans returns the newest scans of a user
func (s *ScanService) ListScans(ctx context.Context, userID uuid.UUID) ([]*models.Scan, error) {
	if s.scanRepo == nil {
		return nil, errors.New("scan repository not set")
	}
	return s.scanRepo.ListByUserID(ctx, userID, ScanListLimit)
}

// GetScan returns a scan owned by userID
func (s *ScanService) GetScan(ctx context.Context, userID, scanID uuid.UUID) (*models.Scan, error) {
	if s.scanRepo == nil {
		return nil, errors.New("scan repository not set")
	}

	scan, err := s.scanRepo.GetByIDForUser(ctx, scanID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: scan not found", ErrNotFound)
		}
		return nil, err
	}
	return scan, nil
}

// ScanImage is an opened scan image. The caller closes Body.
type ScanImage struct {
	Body        io.ReadCloser
	ContentType string
}

// OpenImage streams the stored image of a scan owned by userID
func (s *ScanService) OpenImage(ctx context.Context, userID, scanID uuid.UUID) (*ScanImage, error) {
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}

	scan, err := s.GetScan(ctx, userID, scanID)
	if err != nil {
		return nil, err
	}

	body, err := s.storage.Download(ctx, scan.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: image not found", ErrNotFound)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}

	contentType := "application/octet-stream"
	if types, ok := allowedImageTypes[strings.ToLower(filepath.Ext(scan.ImagePath))]; ok {
		contentType = types[0]
	}
	return &ScanImage{Body: body, ContentType: contentType}, nil
}
