package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins and the Authorization header. "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization")
	config.MaxAge = 12 * time.Hour

	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return cors.New(config)
}
