package handlers

import (
	"context"
	"net/http"

	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthAPI is implemented by service.AuthService
type AuthAPI interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req service.LoginRequest) (*service.AuthResult, error)
}

// AuthHandler handles HTTP requests for registration and login
type AuthHandler struct {
	authService AuthAPI
	log         logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthAPI, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.log.WithField("user_id", result.User.ID).Info("user registered")
	respondOK(c, http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}
