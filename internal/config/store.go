package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/fableforge/fableforge/internal/store"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime-tunable configuration kept in the
// document store. No caching - reads fresh each time.
type Store interface {
	// Get returns a single config entry by key, nil when absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
	DocID       string `json:"_docID,omitempty"`
}

// DocStore implements Store on the document store.
type DocStore struct {
	client *store.Client
}

// NewStore creates a document-store-backed config store.
func NewStore(client *store.Client) *DocStore {
	return &DocStore{client: client}
}

// Get returns a single config entry by key.
func (s *DocStore) Get(ctx context.Context, key string) (*Entry, error) {
	docs, err := s.client.List(ctx, "Config", "name value description", store.ListOptions{
		Filter: fmt.Sprintf("name: {_eq: %q}", key),
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	entries := parseConfigEntries(docs)
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Set creates or updates a config entry.
func (s *DocStore) Set(ctx context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Serialize value to JSON for storage
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	input := map[string]any{
		"name":        key,
		"value":       string(valueJSON),
		"description": description,
	}

	if existing != nil {
		if err := s.client.Update(ctx, "Config", existing.DocID, input); err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		return nil
	}
	if _, err := s.client.Create(ctx, "Config", input); err != nil {
		// If the document already exists, it's already seeded
		if strings.Contains(err.Error(), "already exists") {
			slog.Debug("config entry already seeded", "key", key)
			return nil
		}
		return fmt.Errorf("create failed: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *DocStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	docs, err := s.client.List(ctx, "Config", "name value description", store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	entries := parseConfigEntries(docs)
	result := make(map[string]Entry, len(entries))
	for _, e := range entries {
		result[e.Key] = e
	}
	return result, nil
}

// GetByPrefix returns config entries matching the prefix. The store has no
// LIKE queries, so filtering happens client-side.
func (s *DocStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Entry)
	for key, entry := range all {
		if strings.HasPrefix(key, prefix) {
			result[key] = entry
		}
	}
	return result, nil
}

// Delete removes a config entry by key.
func (s *DocStore) Delete(ctx context.Context, key string) error {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to find entry: %w", err)
	}
	if existing == nil {
		return nil
	}

	if err := s.client.Delete(ctx, "Config", existing.DocID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// parseConfigEntries converts store documents into config entries.
func parseConfigEntries(docs []map[string]any) []Entry {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entry := Entry{}
		if v, ok := doc["_docID"].(string); ok {
			entry.DocID = v
		}
		if v, ok := doc["name"].(string); ok {
			entry.Key = v
		}
		if v, ok := doc["description"].(string); ok {
			entry.Description = v
		}

		// Value is stored as a JSON string
		if v, ok := doc["value"].(string); ok {
			var parsed any
			if err := json.Unmarshal([]byte(v), &parsed); err != nil {
				entry.Value = v
			} else {
				entry.Value = parsed
			}
		} else {
			entry.Value = doc["value"]
		}

		entries = append(entries, entry)
	}
	return entries
}
