package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"corncare-backend/metrics"
	"corncare-backend/models"
	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is allowed on top of the image ceiling for the text fields and boundaries
const multipartOverhead = 1 << 20

// ScanAPI is implemented by service.ScanService
type ScanAPI interface {
	CreateScan(ctx context.Context, req service.CreateScanRequest) (*service.CreateScanResult, error)
	ListScans(ctx context.Context, userID uuid.UUID) ([]*models.Scan, error)
	GetScan(ctx context.Context, userID, scanID uuid.UUID) (*models.Scan, error)
	OpenImage(ctx context.Context, userID, scanID uuid.UUID) (*service.ScanImage, error)
}

// ScanHandler handles HTTP requests for scans
type ScanHandler struct {
	scanService ScanAPI
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

// NewScanHandler creates a new scan handler. m may be nil.
func NewScanHandler(scanService ScanAPI, m *metrics.Metrics, log logrus.FieldLogger) *ScanHandler {
	return &ScanHandler{scanService: scanService, metrics: m, log: log}
}

// CreateScan handles POST /api/scans
func (h *ScanHandler) CreateScan(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxImageSize+multipartOverhead)

	req := service.CreateScanRequest{
		UserID:      userID,
		RequestBase: requestBase(c),
	}

	fileHeader, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := fileHeader.Open()
		if err != nil {
			respondServiceError(c, h.log, err)
			return
		}
		defer file.Close()

		req.Image = file
		req.Filename = fileHeader.Filename
		req.ContentType = fileHeader.Header.Get("Content-Type")
		req.Size = fileHeader.Size
	case errors.Is(err, http.ErrMissingFile):
		// left nil, the service reports the missing image
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Image exceeds the 5MB limit")
			return
		}
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid multipart form")
		return
	}

	req.DiseaseName = c.PostForm("diseaseName")
	req.Confidence = c.PostForm("confidence")
	req.Prediction = c.PostForm("prediction")
	if notes := strings.TrimSpace(c.PostForm("notes")); notes != "" {
		req.Notes = &notes
	}

	result, err := h.scanService.CreateScan(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.metrics.ScanCreated()
	h.log.WithFields(logrus.Fields{
		"user_id": userID,
		"scan_id": result.Scan.ID,
	}).Info("scan created")

	respondOK(c, http.StatusCreated, gin.H{"scan": result.Scan})
}

// ListScans handles GET /api/scans/user
func (h *ScanHandler) ListScans(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	scans, err := h.scanService.ListScans(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"scans": scans})
}

// GetScan handles GET /api/scans/:id
func (h *ScanHandler) GetScan(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	scanID, ok := pathID(c, "id", "scan")
	if !ok {
		return
	}

	scan, err := h.scanService.GetScan(c.Request.Context(), userID, scanID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"scan": scan})
}

// ScanImage handles GET /api/scans/:id/image
func (h *ScanHandler) ScanImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	scanID, ok := pathID(c, "id", "scan")
	if !ok {
		return
	}

	img, err := h.scanService.OpenImage(c.Request.Context(), userID, scanID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	defer img.Body.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, img.ContentType, img.Body, nil)
}
