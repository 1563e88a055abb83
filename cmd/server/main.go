package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corncare-backend/advisor"
	"corncare-backend/auth"
	"corncare-backend/config"
	"corncare-backend/handlers"
	"corncare-backend/logging"
	"corncare-backend/metrics"
	"corncare-backend/middleware"
	"corncare-backend/migrations"
	"corncare-backend/repository"
	"corncare-backend/service"
	"corncare-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize database connections
	db, err := initPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize storage
	imageStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	log.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	scanRepo := repository.NewScanRepository(db)
	chatRepo := repository.NewChatRepository(db)

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	chatOpts := []service.ChatServiceOption{
		service.WithChatRepository(chatRepo),
		service.WithChatUserRepository(userRepo),
	}
	if gemini := initGemini(ctx, cfg, log); gemini != nil {
		defer gemini.Close()
		chatOpts = append(chatOpts, service.WithAdvisor(gemini))
	}

	// Initialize services
	authService := service.NewAuthService(
		service.WithAuthUserRepository(userRepo),
		service.WithTokenManager(tokens),
		service.WithPasswordHasher(auth.NewBcryptHasher(auth.DefaultBcryptCost)),
	)
	scanService := service.NewScanService(
		service.WithScanRepository(scanRepo),
		service.WithScanUserRepository(userRepo),
		service.WithStorage(imageStorage),
		service.WithScanLogger(log),
	)
	chatService := service.NewChatService(chatOpts...)
	userService := service.NewUserService(
		service.WithUserRepository(userRepo),
		service.WithUserScanRepository(scanRepo),
		service.WithUserChatRepository(chatRepo),
	)

	m := metrics.New()

	// Initialize handlers
	router := &handlers.Router{
		Auth:        handlers.NewAuthHandler(authService, log),
		Scans:       handlers.NewScanHandler(scanService, m, log),
		Chats:       handlers.NewChatHandler(chatService, m, log),
		Users:       handlers.NewUserHandler(userService, log),
		Tokens:      tokens,
		AuthLimiter: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log),
		Metrics:     m,
	}
	if local, ok := imageStorage.(*storage.LocalStorage); ok {
		router.UploadsDir = local.BasePath()
	}

	// Setup Gin router
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORSAllowOrigins),
	)
	router.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initPostgres(ctx context.Context, connString string, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := migrations.RunWithPool(ctx, pool, migrations.Up); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connection established, schema up to date")
	return pool, nil
}

// initGemini returns nil when no API key is configured; /api/chats/ask then answers 503
func initGemini(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) *advisor.GeminiAdvisor {
	if !cfg.AdvisorEnabled() {
		log.Warn("GEMINI_API_KEY not set, advisor disabled")
		return nil
	}

	client, err := advisor.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.WithError(err).Warn("Gemini client unavailable, advisor disabled")
		return nil
	}

	log.WithField("model", cfg.GeminiModel).Info("Gemini client initialized")
	return client
}
