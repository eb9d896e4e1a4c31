package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"imageupdater/internal/api/handlers"
	"imageupdater/internal/api/middleware"
	"imageupdater/internal/auth"
	"imageupdater/internal/config"
	"imageupdater/internal/database"
	"imageupdater/internal/imageupdate"
	"imageupdater/internal/logger"
	"imageupdater/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Services are the backends the routes are served from.
type Services struct {
	Catalog      handlers.Catalog
	ImageUpdates *imageupdate.Service
	Auth         *auth.Service
	Metrics      *metrics.Metrics
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database, svc Services) *Server {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// GIDs arrive path-escaped: gid:%2F%2Fshopify%2FCollection%2F7
	router.UseRawPath = true
	router.UnescapePathValues = true

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins()))
	router.Use(middleware.Metrics(svc.Metrics))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth, logger)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog, logger)
	imageUpdateHandler := handlers.NewImageUpdateHandler(svc.ImageUpdates, logger)

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))

	// Routes
	apiGroup := router.Group("/api")
	{
		// Gate sessions
		session := apiGroup.Group("/auth/session")
		{
			session.POST("", authHandler.Login)
			session.DELETE("", authHandler.Logout)
		}

		protected := apiGroup.Group("", middleware.RequireSession(svc.Auth))

		// Catalog
		protected.GET("/collections", catalogHandler.ListCollections)
		protected.GET("/collections/:id", catalogHandler.GetCollection)
		protected.GET("/products", catalogHandler.ListProducts)

		// Image update operations
		operation := protected.Group("/image-updates/operation")
		{
			operation.POST("", imageUpdateHandler.Create)
			operation.GET("/:id", imageUpdateHandler.Get)
			operation.GET("/:id/csv", imageUpdateHandler.DownloadCSV)
			operation.POST("/:id/upload", imageUpdateHandler.UploadCSV)
			operation.POST("/:id/process", imageUpdateHandler.Process)
		}

		// History
		operations := protected.Group("/operations")
		{
			operations.GET("/history", imageUpdateHandler.History)
			operations.POST("/:id/rollback", imageUpdateHandler.Rollback)
			operations.POST("/:id/repeat", imageUpdateHandler.Repeat)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}
