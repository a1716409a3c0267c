// Package api wires together all HTTP routes for the article registry backend.
//
// Route grouping philosophy:
//   - Public read routes (/articles, /article/id/, /organisation/id/) are
//     unauthenticated: they serve the rendered sites and apply only the
//     article visibility filter, never membership.
//   - Everything under the management surface requires a Bearer session token;
//     per-organisation capability checks happen inside the handlers because
//     they depend on which record is being touched.
//   - /user/login and /user/create stand outside the authenticated group:
//     login issues the session, and creation supports the bootstrap password
//     path used to seed the first top-level admin.
package api

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/inevitable-science/article-registry/internal/api/articles"
	"github.com/inevitable-science/article-registry/internal/api/organisations"
	"github.com/inevitable-science/article-registry/internal/api/public"
	"github.com/inevitable-science/article-registry/internal/api/upload"
	"github.com/inevitable-science/article-registry/internal/api/users"
	"github.com/inevitable-science/article-registry/internal/auth"
	"github.com/inevitable-science/article-registry/internal/config"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/notify"
	"github.com/inevitable-science/article-registry/internal/services"
	"github.com/inevitable-science/article-registry/internal/storage"

	// Import storage backends to register them
	_ "github.com/inevitable-science/article-registry/internal/storage/local"
	_ "github.com/inevitable-science/article-registry/internal/storage/s3"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) calls Shutdown() after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	limiters []*middleware.ClientLimiter
}

// Shutdown stops all background goroutines
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, l := range bg.limiters {
		l.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	storageBackend, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganisationRepository(db)

	// Wrap *sql.DB with sqlx for the article repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	articleRepo := repositories.NewArticleRepository(sqlxDB)

	access := services.NewAccessService(orgRepo)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	notifier := notify.NewNotifier(cfg.Notifications.WebhookURL, cfg.Notifications.Timeout, slog.Default())

	// Rate limiters: a general per-client limiter for everything, plus a much
	// stricter one for login so credential guessing burns out quickly.
	generalLimiter := middleware.NewClientLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	loginLimiter := middleware.NewClientLimiter(10, 3)

	var globalLimiter *middleware.GlobalLimiter
	if cfg.RateLimit.GlobalRequestsPerMinute > 0 {
		globalLimiter = middleware.NewGlobalLimiter(cfg.RateLimit.RedisAddr, cfg.RateLimit.GlobalRequestsPerMinute)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.GlobalRateLimit(globalLimiter))
	router.Use(middleware.ClientRateLimit(generalLimiter))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	articleHandlers := articles.NewHandlers(articleRepo, orgRepo, userRepo, access, notifier)
	orgHandlers := organisations.NewHandlers(orgRepo, userRepo, articleRepo, access, notifier)
	userHandlers := users.NewHandlers(userRepo, orgRepo, articleRepo, access, tokens, auth.TOTPVerifier{}, notifier, cfg.Auth.BootstrapPassword)
	publicHandlers := public.NewHandlers(articleRepo, orgRepo, userRepo)
	uploadHandlers := upload.NewHandlers(storageBackend, userRepo, cfg.Storage.MaxUploadBytes)

	// Public read surface (no auth, visibility filter only)
	router.GET("/articles", publicHandlers.ListArticles)
	router.GET("/articles/latest", publicHandlers.Latest)
	router.GET("/article/id/:articleId", publicHandlers.FetchArticle)
	router.GET("/organisation/id/:organisationId", publicHandlers.FetchOrganisation)

	// Session and account bootstrap endpoints
	router.POST("/user/login", middleware.ClientRateLimit(loginLimiter), userHandlers.Login)
	router.POST("/user/create", userHandlers.Create)

	// Management surface
	authed := router.Group("")
	authed.Use(middleware.Authenticate(tokens, userRepo))
	{
		authed.GET("/article/fetch/:articleId", articleHandlers.Fetch)
		authed.POST("/article/create", articleHandlers.Create)
		authed.POST("/article/edit/:articleId", articleHandlers.Edit)
		authed.POST("/article/delete", articleHandlers.Delete)

		authed.GET("/organisation/:organisationId", orgHandlers.Fetch)
		authed.POST("/organisation/create", orgHandlers.Create)
		authed.POST("/organisation/edit/:organisationId", orgHandlers.Edit)

		authed.POST("/user/fetch", userHandlers.Fetch)
		authed.POST("/user/edit", userHandlers.Edit)
		authed.GET("/user/all", userHandlers.All)

		authed.POST("/upload/:uploadType", uploadHandlers.UploadImage)
	}

	bg := &BackgroundServices{
		limiters: []*middleware.ClientLimiter{generalLimiter, loginLimiter},
	}

	return router, bg
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
