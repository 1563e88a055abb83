// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"corncare-backend/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserIDKey is the gin context key the authenticated user id is stored under
const UserIDKey = "userId"

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthGate rejects requests without a valid bearer token
func AuthGate(tokens auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
			return
		}

		subject, err := tokens.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
				return
			}
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		userID, err := uuid.Parse(subject)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by AuthGate
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
