package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"
)

const (
	cleanupInterval  = time.Hour
	cleanupRetention = 24 * time.Hour
)

// Config comes from the environment, with .env loaded on import.
type Config struct {
	Port                      int
	DatabaseURL               string
	AllowDuplicateConnections bool
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{Port: 8080}
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing PORT: %w", err)
		}
		cfg.Port = port
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if raw := os.Getenv("ALLOW_DUPLICATE_CONNECTIONS"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing ALLOW_DUPLICATE_CONNECTIONS: %w", err)
		}
		cfg.AllowDuplicateConnections = allow
	}
	return cfg, nil
}

// Server wires the registry, coordinator and store together.
type Server struct {
	logger      *slog.Logger
	pool        *pgxpool.Pool
	identity    IdentityProvider
	registry    *Registry
	coordinator *Coordinator

	stopCleanup chan struct{}
}

// New builds the server, runs migrations and restores unfinished
// matches. The returned http.Server is ready to listen.
func New(ctx context.Context, logger *slog.Logger) (*Server, *http.Server, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := NewPGStore(pool)
	registry := NewRegistry(logger, cfg.AllowDuplicateConnections)
	coordinator := NewCoordinator(store, registry, logger)

	if err := coordinator.Restore(ctx); err != nil {
		logger.Warn("restore failed, starting empty", "error", err)
	}

	srv := &Server{
		logger:      logger,
		pool:        pool,
		identity:    NewPGIdentity(pool),
		registry:    registry,
		coordinator: coordinator,
		stopCleanup: make(chan struct{}),
	}
	go srv.cleanupLoop()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv, httpServer, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			s.coordinator.Cleanup(ctx, cleanupRetention)
			cancel()
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown stops the background task, closes live connections and
// releases the pool.
func (s *Server) Shutdown() {
	close(s.stopCleanup)
	s.registry.CloseAll(websocket.StatusGoingAway, "server shutting down")
	s.pool.Close()
}
