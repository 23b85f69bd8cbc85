package config

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultEntries returns the runtime-tunable entries seeded into the
// document store on first boot. These cover knobs an operator may adjust
// without a restart; connection-level settings stay in the YAML config.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         "generation.text_model",
			Value:       "gpt-4o",
			Description: "Model used for narrative generation and style extraction",
		},
		{
			Key:         "generation.image_model",
			Value:       "dall-e-3",
			Description: "Model used for page and cover illustration",
		},
		{
			Key:         "generation.temperature",
			Value:       0.8,
			Description: "Sampling temperature for narrative generation",
		},
		{
			Key:         "generation.call_spacing_seconds",
			Value:       2.0,
			Description: "Minimum spacing between outbound generation calls, shared across all jobs",
		},
		{
			Key:         "generation.retry_attempts",
			Value:       3,
			Description: "Attempts per generation call before surfacing the error",
		},
		{
			Key:         "moderation.max_flags",
			Value:       3,
			Description: "Flag count above which a verdict requires human review",
		},
	}
}

// SeedDefaults writes any missing default entries to the store. Existing
// entries are left untouched so operator overrides survive restarts.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read existing config: %w", err)
	}

	seeded := 0
	for _, entry := range DefaultEntries() {
		if _, ok := existing[entry.Key]; ok {
			continue
		}
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed %q: %w", entry.Key, err)
		}
		seeded++
	}
	if seeded > 0 {
		logger.Info("seeded default config entries", "count", seeded)
	}
	return nil
}

// GetDefault returns the default entry for a key, nil if the key has no
// default.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault restores one entry to its shipped default.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("no default for key %q", key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
