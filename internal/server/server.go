package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sheetlytics/apiserver/config"
	"github.com/sheetlytics/apiserver/internal/db"
	"github.com/sheetlytics/apiserver/internal/handlers"
	"github.com/sheetlytics/apiserver/internal/logger"
	"github.com/sheetlytics/apiserver/internal/metrics"
	"github.com/sheetlytics/apiserver/internal/services"
	"github.com/sheetlytics/apiserver/internal/storage"
	"github.com/sheetlytics/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.New(cfg.LogLevel)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectBackend, err := newObjectBackend(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	objects := storage.NewStorage(objectBackend)
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	analysisRepo := store.NewAnalysisRepository(dbConn)

	userService := services.NewUserService(userRepo)
	analysisService := services.NewAnalysisService(analysisRepo, objects)
	adminService := services.NewAdminService(userRepo, analysisRepo)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authHandler := handlers.NewAuthHandler(userService, jwtSecret)
	authMiddleware := authHandler.RequireAuth

	registry := metrics.NewRegistry()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logger.RequestLogger(log),
		registry.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", registry.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		handlers.AnalysisRouter(r, analysisService, authMiddleware)
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminService, registry, authMiddleware)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Str("storage", cfg.Storage.Backend).Msg("server configured")

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
	}, nil
}

func newObjectBackend(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Backend {
	case "gcs":
		return storage.NewGCSClient(ctx, cfg.GCS)
	case "", "minio":
		return storage.NewMinioClient(cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
