// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the
// whole dependency chain is assembled in one place:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Keeping it separate from main.go makes the server testable (tests can
// build a Server and hit its Router without binding a port) and keeps
// main.go down to configuration reading.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/handler"
	"github.com/sakif/fileshare/internal/middleware"
	sqliteRepo "github.com/sakif/fileshare/internal/repository/sqlite"
	"github.com/sakif/fileshare/internal/service"
	"github.com/sakif/fileshare/internal/storage"
)

// Config holds server configuration. Using a struct (instead of individual
// parameters) keeps function signatures stable as options are added.
type Config struct {
	Port      int
	DBPath    string // path to the SQLite database file
	DataDir   string // root directory for per-user file storage
	JWTSecret string // signing key for session tokens, at least 16 characters
}

// Server owns the router and the resources that must be released on
// shutdown. The database connection in particular has to be closed to
// flush the WAL and release the file lock; Start handles that.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with the given config, wiring every layer.
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete sqlite.DB), handlers get services (never
// the repositories or the DB).
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Router exposes the configured handler chain, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all middleware, dependencies, and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/register             → create an account (open for the first user, admin-only after)
//	POST   /api/login                → verify credentials, set session cookie
//	POST   /api/logout               → clear session cookie
//	GET    /api/me                   → current user profile
//	GET    /api/users                → list users (admin)
//	GET    /api/users/{id}           → user profile with visible items
//	PUT    /api/users/{id}           → update own name/password
//	DELETE /api/users/{id}           → delete account (self or admin)
//	GET    /api/items                → own items, newest first
//	POST   /api/items                → upload a file
//	GET    /api/items/{id}           → item metadata
//	GET    /api/items/{id}/download  → stream the file
//	PUT    /api/items/{id}           → change shared flag
//	DELETE /api/items/{id}           → delete item and file
//
// Middleware executes in the order it's added: RequestID → RealIP →
// Recoverer → request logging, then per-route RequireAuth/OptionalAuth.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	store, err := storage.New(s.config.DataDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	users := s.db.Users()
	items := s.db.Items()

	userService := service.NewUserService(users, items, store, passwords, s.logger)
	itemService := service.NewItemService(items, users, store, s.logger)

	authHandler := handler.NewAuthHandler(userService, tokens, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	itemHandler := handler.NewItemHandler(itemService, s.logger)

	requireAuth := auth.RequireAuth(tokens, users)
	optionalAuth := auth.OptionalAuth(tokens, users)

	s.router.Route("/api", func(r chi.Router) {
		// Session endpoints. Registration runs under OptionalAuth because
		// an admin creating an account is an authenticated request while
		// the first user's self-registration is anonymous.
		r.With(optionalAuth).Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Route("/users", func(r chi.Router) {
			r.With(requireAuth).Get("/", userHandler.HandleList)
			r.With(optionalAuth).Get("/{id}", userHandler.HandleProfile)
			r.With(requireAuth).Put("/{id}", userHandler.HandleUpdate)
			r.With(requireAuth).Delete("/{id}", userHandler.HandleDelete)
		})

		r.Route("/items", func(r chi.Router) {
			r.With(requireAuth).Get("/", itemHandler.HandleList)
			r.With(requireAuth).Post("/", itemHandler.HandleUpload)
			r.With(optionalAuth).Get("/{id}", itemHandler.HandleGet)
			r.With(optionalAuth).Get("/{id}/download", itemHandler.HandleDownload)
			r.With(requireAuth).Put("/{id}", itemHandler.HandleUpdate)
			r.With(requireAuth).Delete("/{id}", itemHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the HTTP server and blocks until a shutdown signal arrives.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("dataDir", s.config.DataDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
