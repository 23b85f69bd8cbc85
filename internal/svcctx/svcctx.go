// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/fableforge/fableforge/internal/assets"
	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/home"
	"github.com/fableforge/fableforge/internal/pipeline"
	"github.com/fableforge/fableforge/internal/printcomp"
	"github.com/fableforge/fableforge/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	StoreClient  *store.Client
	Books        *books.Store
	Assets       *assets.Store
	JobManager   *pipeline.Manager
	Orchestrator *pipeline.Orchestrator
	Composer     *printcomp.Composer
	ConfigStore  config.Store
	Logger       *slog.Logger
	Home         *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreClientFrom extracts the document store client from context.
func StoreClientFrom(ctx context.Context) *store.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreClient
	}
	return nil
}

// BooksFrom extracts the book store from context.
func BooksFrom(ctx context.Context) *books.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Books
	}
	return nil
}

// AssetsFrom extracts the asset store from context.
func AssetsFrom(ctx context.Context) *assets.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Assets
	}
	return nil
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *pipeline.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// OrchestratorFrom extracts the generation orchestrator from context.
func OrchestratorFrom(ctx context.Context) *pipeline.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// ComposerFrom extracts the print composer from context.
func ComposerFrom(ctx context.Context) *printcomp.Composer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Composer
	}
	return nil
}

// ConfigStoreFrom extracts the config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
