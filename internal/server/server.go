// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/evercast/internal/api"
	"github.com/stwalsh4118/evercast/internal/catalog"
	"github.com/stwalsh4118/evercast/internal/config"
	"github.com/stwalsh4118/evercast/internal/db"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/middleware"
	"github.com/stwalsh4118/evercast/internal/playback"
	"github.com/stwalsh4118/evercast/internal/pool"
	"github.com/stwalsh4118/evercast/internal/presence"
	"github.com/stwalsh4118/evercast/internal/session"
	"golang.org/x/time/rate"
)

const initialImportTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	db       *db.DB
	repos    *db.Repositories
	catalog  *catalog.Service
	watcher  *catalog.Watcher
	sessions *session.Manager
	router   *gin.Engine
	server   *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	catalogService := catalog.NewService(repos.Content, cfg.Playback.DefaultSlideDuration)
	manager := session.NewManager(SessionConfig(cfg), catalogService, newInhibitor(cfg.Presence))

	s := &Server{
		config:   cfg,
		db:       database,
		repos:    repos,
		catalog:  catalogService,
		sessions: manager,
	}

	if cfg.Content.WatchFile != "" {
		watcher, err := catalog.NewWatcher(cfg.Content.WatchFile, catalogService, manager.RefreshPool, cfg.Content.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create catalogue watcher: %w", err)
		}
		s.watcher = watcher
	}

	s.setupRouter()
	return s, nil
}

// SessionConfig maps application configuration onto session settings
func SessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Playback: playback.Config{
			FallbackTimeout:      cfg.Playback.FallbackTimeout,
			AdvanceFloor:         cfg.Playback.AdvanceFloor,
			DefaultSlideDuration: cfg.Playback.DefaultSlideDuration,
			AutoSlideAdvance:     cfg.Playback.AutoSlideAdvance,
		},
		Bumpers:     cfg.Playback.Bumpers,
		SlideBumper: cfg.Playback.SlideBumper,
		Policy: pool.Policy{
			ForbiddenCategory: cfg.Playback.ForbiddenCategory,
			ExcludedID:        cfg.Playback.ExcludedID,
		},
		DeepLinkDelay:    cfg.Playback.DeepLinkDelay,
		IdleTimeout:      cfg.Session.IdleTimeout,
		CleanupInterval:  cfg.Session.CleanupInterval,
		MaxSessions:      cfg.Session.MaxSessions,
		TriggerRate:      rate.Limit(cfg.Session.TriggerRate),
		TriggerBurst:     cfg.Session.TriggerBurst,
		BreakerThreshold: cfg.Presence.BreakerThreshold,
		BreakerReset:     cfg.Presence.BreakerReset,
		InhibitReason:    cfg.Presence.Reason,
	}
}

func newInhibitor(cfg config.PresenceConfig) presence.Inhibitor {
	if !cfg.Enabled {
		return presence.NoopInhibitor{}
	}
	return presence.NewLogindInhibitor(cfg.Who)
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware(s.config.Server.CORSOrigins))

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.sessions)
	api.SetupContentRoutes(apiGroup, s.repos.Content)
	api.SetupSessionRoutes(apiGroup, s.sessions)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowHeaders = append(cfg.AllowHeaders, middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	return cors.New(cfg)
}

// Start imports the watched catalogue, starts background loops and serves HTTP.
// It blocks until the server stops.
func (s *Server) Start() error {
	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	if s.watcher != nil {
		s.importWatchedFile()
		if err := s.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start catalogue watcher: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) importWatchedFile() {
	path := s.config.Content.WatchFile
	if _, err := os.Stat(path); err != nil {
		logger.Log.Warn().Err(err).Str("path", path).Msg("Watched catalogue not readable yet, serving stored content")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), initialImportTimeout)
	defer cancel()

	n, err := s.catalog.ImportFile(ctx, path)
	if err != nil {
		logger.Log.Error().Err(err).Str("path", path).Msg("Initial catalogue import failed, serving stored content")
		return
	}
	logger.Log.Info().Int("items", n).Str("path", path).Msg("Catalogue imported")
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			logger.Log.Warn().Err(err).Msg("Error stopping catalogue watcher")
		}
	}

	// closing the sessions ends open event streams so the HTTP shutdown can drain
	s.sessions.Stop()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
