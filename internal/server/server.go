// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects storage, services,
// handlers, middleware and routes. It decides:
// - Which storage backend to open
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:      config.Load → server.New(cfg, logger)
//	server.New:   Store (sqlite|postgres) → services → handlers → routes
//
// This is the "composition root" pattern: every dependency is wired here,
// in New/setupRoutes, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/acme-skills/internal/auth"
	"github.com/sakif/acme-skills/internal/config"
	"github.com/sakif/acme-skills/internal/handler"
	"github.com/sakif/acme-skills/internal/middleware"
	"github.com/sakif/acme-skills/internal/repository"
	"github.com/sakif/acme-skills/internal/repository/postgres"
	sqliteRepo "github.com/sakif/acme-skills/internal/repository/sqlite"
	"github.com/sakif/acme-skills/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the storage pool. Start closes it after the HTTP server
// has drained; callers that never Start (tests) call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store

	tokens    *auth.TokenService
	accounts  *service.AuthService
	catalog   *service.CatalogService
	favorites *service.FavoriteService
}

// New opens the configured store, seeds it and wires every route.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := newWithStore(ctx, cfg, logger, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// openStore picks the storage backend named by cfg.Database.Driver.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		logger.Info("storage ready", slog.String("driver", config.DriverPostgres))
		return db, nil

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		logger.Info("storage ready",
			slog.String("driver", config.DriverSQLite),
			slog.String("path", cfg.Database.Path),
		)
		return db, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func newWithStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, store repository.Store) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("creating password service: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		tokens:    tokens,
		accounts:  service.NewAuthService(store.Users(), tokens, passwords, logger),
		catalog:   service.NewCatalogService(store.Skills(), logger),
		favorites: service.NewFavoriteService(store.Favorites(), store.Skills(), logger),
	}

	if err := service.Seed(ctx, s.catalog, s.accounts, s.favorites, service.SeedOptions{
		Skills:    cfg.Seed.Skills,
		DemoUsers: cfg.Seed.DemoUsers,
	}, logger); err != nil {
		return nil, fmt.Errorf("seeding database: %w", err)
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /auth/register                 → create account, returns token
// POST   /auth/login                    → returns token
// GET    /auth/me                       → caller profile          [auth]
// GET    /auth/github/login             → GitHub redirect         (404 if disabled)
// GET    /auth/github/callback          → returns token           (404 if disabled)
// GET    /skills                        → catalog
// GET    /users                         → all users
// GET    /users/{id}/favorites          → caller's favorites      [auth, owner]
// POST   /users/{id}/favorites          → add favorite            [auth, owner]
// DELETE /users/{id}/favorites/{favId}  → remove favorite         [auth, owner]
// GET    /healthz                       → storage ping
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflights before any auth check can reject them
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORS.AllowedOrigins, s.logger))

	// A nil interface, not a nil *GitHubProvider, disables the routes.
	var github handler.GitHubExchanger
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(s.accounts, github, s.logger)
	skillHandler := handler.NewSkillHandler(s.catalog, s.logger)
	userHandler := handler.NewUserHandler(s.accounts, s.logger)
	favoriteHandler := handler.NewFavoriteHandler(s.favorites, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Get("/skills", skillHandler.HandleList)

	s.router.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.HandleList)

		// Ownership is checked here, before any handler (and therefore any
		// storage access) runs.
		r.Route("/{id}/favorites", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(auth.RequireOwner("id"))

			r.Get("/", favoriteHandler.HandleList)
			r.Post("/", favoriteHandler.HandleCreate)
			r.Delete("/{favId}", favoriteHandler.HandleDelete)
		})
	})
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the storage pool.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or a
// listener error.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the storage pool
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("github", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
