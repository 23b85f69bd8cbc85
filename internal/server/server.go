// Package server assembles the fableforge services and runs the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/assets"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/home"
	"github.com/fableforge/fableforge/internal/illustration"
	"github.com/fableforge/fableforge/internal/narrative"
	"github.com/fableforge/fableforge/internal/pipeline"
	"github.com/fableforge/fableforge/internal/printcomp"
	"github.com/fableforge/fableforge/internal/providers"
	"github.com/fableforge/fableforge/internal/schema"
	"github.com/fableforge/fableforge/internal/server/endpoints"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/svcctx"
)

// Server is the main fableforge HTTP server. It connects to the document
// store on start, initializes collections, and wires the generation and
// composition services into every request context.
type Server struct {
	httpServer       *http.Server
	endpointRegistry *api.Registry
	configMgr        *config.Manager
	homeDir          *home.Dir
	logger           *slog.Logger

	storeClient *store.Client
	storeSink   *store.Sink

	// services holds all core services for context enrichment
	services *svcctx.Services

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the fableforge home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		homeDir:   cfg.Home,
		logger:    cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // generation and composition are slow
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.configMgr.Get()

	// Connect to the document store
	s.storeClient = store.NewClient(cfg.Store.URL)
	if err := s.storeClient.HealthCheck(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("document store health check failed: %w", err)
	}
	s.logger.Info("document store is ready", "url", cfg.Store.URL)

	// Initialize collections
	if err := schema.Initialize(ctx, s.storeClient, s.logger); err != nil {
		s.setNotRunning()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Start the async write sink
	s.storeSink = store.NewSink(store.SinkConfig{
		Client:    s.storeClient,
		QueueSize: cfg.Store.QueueSize,
		Logger:    s.logger,
	})
	s.storeSink.Start(ctx)

	// Seed runtime-tunable settings
	configStore := config.NewStore(s.storeClient)
	if err := config.SeedDefaults(ctx, configStore, s.logger); err != nil {
		s.logger.Warn("failed to seed default settings", "error", err)
	}

	s.services = s.buildServices(cfg, configStore)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildServices wires the generation and composition stack from config.
func (s *Server) buildServices(cfg *config.Config, configStore config.Store) *svcctx.Services {
	bookStore := books.NewStore(s.storeClient)
	assetStore := assets.NewStore(s.homeDir)

	text := providers.NewOpenAITextClient(providers.OpenAITextConfig{
		APIKey:       cfg.ResolvedTextKey(),
		BaseURL:      cfg.TextProvider.BaseURL,
		DefaultModel: cfg.TextProvider.Model,
	})
	image := providers.NewOpenAIImageClient(providers.OpenAIImageConfig{
		APIKey:  cfg.ResolvedImageKey(),
		BaseURL: cfg.ImageProvider.BaseURL,
		Model:   cfg.ImageProvider.Model,
	})

	// One pacer for the whole process: pacing is the only cross-job
	// serialization point.
	pacer := providers.NewPacer(time.Duration(cfg.Generation.CallSpacingSeconds * float64(time.Second)))
	retry := providers.RetryPolicy{
		Attempts: cfg.Generation.RetryAttempts,
		Delay:    time.Duration(cfg.Generation.RetryDelaySeconds * float64(time.Second)),
	}

	narrativeGen := narrative.NewGenerator(narrative.GeneratorConfig{
		Text:        text,
		Pacer:       pacer,
		Retry:       retry,
		Model:       cfg.TextProvider.Model,
		Temperature: cfg.TextProvider.Temperature,
		Logger:      s.logger,
	})
	illustrationGen := illustration.NewGenerator(illustration.GeneratorConfig{
		Image:  image,
		Text:   text,
		Blobs:  assetStore,
		Fetch:  providers.NewFetcher(0),
		Pacer:  pacer,
		Retry:  retry,
		Logger: s.logger,
	})

	jobManager := pipeline.NewManager(s.storeClient, s.storeSink, s.logger)
	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Books:        bookStore,
		Assets:       assetStore,
		Narrative:    narrativeGen,
		Illustration: illustrationGen,
		Jobs:         jobManager,
		Logger:       s.logger,
	})

	return &svcctx.Services{
		StoreClient:  s.storeClient,
		Books:        bookStore,
		Assets:       assetStore,
		JobManager:   jobManager,
		Orchestrator: orchestrator,
		Composer:     printcomp.NewComposer(assetStore, s.logger),
		ConfigStore:  configStore,
		Logger:       s.logger,
		Home:         s.homeDir,
	}
}

// shutdown performs graceful shutdown of the HTTP server and write sink.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.storeSink != nil {
		s.storeSink.Stop()
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and services are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
