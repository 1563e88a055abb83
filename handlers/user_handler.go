package handlers

import (
	"context"
	"net/http"

	"corncare-backend/models"
	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserAPI is implemented by service.UserService
type UserAPI interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*service.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update models.ProfileUpdate) (*service.Profile, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*service.UserStats, error)
}

// UserHandler handles HTTP requests for profiles
type UserHandler struct {
	userService UserAPI
	log         logrus.FieldLogger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService UserAPI, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// PreferencesRequest carries individually optional preferences
type PreferencesRequest struct {
	Notifications *bool   `json:"notifications"`
	Language      *string `json:"language" binding:"omitempty,min=2,max=10"`
	DarkMode      *bool   `json:"darkMode"`
}

// UpdateProfileRequest represents the request body for a profile edit
type UpdateProfileRequest struct {
	Name         *string             `json:"name" binding:"omitempty,max=100"`
	ProfileImage *string             `json:"profileImage" binding:"omitempty,max=2048"`
	Preferences  *PreferencesRequest `json:"preferences"`
}

// GetProfile handles GET /api/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"user": profile})
}

// UpdateProfile handles PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	update := models.ProfileUpdate{
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
	}
	if req.Preferences != nil {
		update.Preferences = &models.PreferencesUpdate{
			Notifications: req.Preferences.Notifications,
			Language:      req.Preferences.Language,
			DarkMode:      req.Preferences.DarkMode,
		}
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"user": profile})
}

// GetStats handles GET /api/users/stats
func (h *UserHandler) GetStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.userService.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"stats": stats})
}
