package handlers

import (
	"net/http"

	"corncare-backend/auth"
	"corncare-backend/metrics"
	"corncare-backend/middleware"
	"corncare-backend/storage"

	"github.com/gin-gonic/gin"
)

// Router bundles the handlers and middleware dependencies of the HTTP API
type Router struct {
	Auth  *AuthHandler
	Scans *ScanHandler
	Chats *ChatHandler
	Users *UserHandler

	Tokens      auth.TokenManager
	AuthLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics

	// UploadsDir is served under /uploads when images are stored locally. Empty disables it.
	UploadsDir string
}

// Register mounts every route on r
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	if rt.Metrics != nil {
		r.GET("/metrics", gin.WrapH(rt.Metrics.Handler()))
	}

	if rt.UploadsDir != "" {
		r.Static(storage.UploadsRoute, rt.UploadsDir)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if rt.AuthLimiter != nil {
		authGroup.Use(rt.AuthLimiter.Handler())
	}
	{
		authGroup.POST("/register", rt.Auth.Register)
		authGroup.POST("/login", rt.Auth.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthGate(rt.Tokens))

	scans := protected.Group("/scans")
	{
		scans.POST("", rt.Scans.CreateScan)
		scans.GET("/user", rt.Scans.ListScans)
		scans.GET("/:id", rt.Scans.GetScan)
		scans.GET("/:id/image", rt.Scans.ScanImage)
	}

	chats := protected.Group("/chats")
	{
		chats.POST("", rt.Chats.AppendMessage)
		chats.POST("/ask", rt.Chats.Ask)
		chats.GET("/user", rt.Chats.ListChats)
		chats.GET("/recent/preview", rt.Chats.PreviewRecent)
		chats.GET("/stats/summary", rt.Chats.Stats)
		chats.GET("/search/:query", rt.Chats.Search)
		chats.GET("/export/all", rt.Chats.ExportAll)
		chats.GET("/topics/categories", rt.Chats.Categorize)
		chats.DELETE("/clear/all", rt.Chats.ClearAllChats)
		chats.GET("/:chatId", rt.Chats.GetChat)
		chats.DELETE("/:chatId", rt.Chats.DeleteChat)
	}

	users := protected.Group("/users")
	{
		users.GET("/profile", rt.Users.GetProfile)
		users.PUT("/profile", rt.Users.UpdateProfile)
		users.GET("/stats", rt.Users.GetStats)
	}
}
