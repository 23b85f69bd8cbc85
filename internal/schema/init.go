// Package schema defines the document-store collections used by fableforge
// and applies them on server start.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fableforge/fableforge/internal/store"
)

// Initialize applies all schemas to the document store.
// It's safe to call multiple times - existing collections are skipped.
func Initialize(ctx context.Context, client *store.Client, logger *slog.Logger) error {
	schemas, err := All()
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	for _, s := range schemas {
		if err := applySchema(ctx, client, s, logger); err != nil {
			return err
		}
	}

	return nil
}

func applySchema(ctx context.Context, client *store.Client, s Schema, logger *slog.Logger) error {
	err := client.AddSchema(ctx, s.SDL)
	if err != nil {
		if isAlreadyExistsError(err) {
			logger.Info("schema already exists", "name", s.Name)
			return nil
		}
		return fmt.Errorf("failed to add schema %s: %w", s.Name, err)
	}

	logger.Info("schema added", "name", s.Name)
	return nil
}

// isAlreadyExistsError checks if the error indicates the collection already
// exists. The store is accessed over HTTP, not a Go SDK, so errors are parsed
// from response bodies. String matching is unavoidable here.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "collection already exists") ||
		strings.Contains(msg, "already exists")
}
