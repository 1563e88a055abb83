package handlers

import (
	"errors"
	"net/http"
	"strings"

	"corncare-backend/middleware"
	"corncare-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// detail strips the sentinel prefix from a wrapped service error
func detail(err, sentinel error, fallback string) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return fallback
	}
	return msg
}

// respondServiceError maps service sentinels to HTTP responses. Unknown errors are logged, never echoed.
func respondServiceError(c *gin.Context, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", detail(err, service.ErrValidation, "Invalid request"))
	case errors.Is(err, service.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", detail(err, service.ErrConflict, "Already exists"))
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", detail(err, service.ErrNotFound, "Not found"))
	case errors.Is(err, service.ErrAdvisorUnavailable):
		log.WithError(err).WithField("path", c.FullPath()).Warn("advisor unavailable")
		respondError(c, http.StatusServiceUnavailable, "ADVISOR_UNAVAILABLE", "Advice service is unavailable")
	default:
		_ = c.Error(err)
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		respondError(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error")
	}
}

// currentUser reads the id set by the auth gate
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a uuid path parameter and answers 400 when it is malformed
func pathID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// requestBase returns "<scheme>://<host>" of the incoming request
func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}
