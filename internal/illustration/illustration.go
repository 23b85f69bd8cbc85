// Package illustration turns page and cover prompts into finished images
// through the image provider, keeping character appearance consistent via
// cached style prompts extracted from reference photos.
package illustration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/providers"
	"github.com/fableforge/fableforge/internal/safety"
)

// DefaultImageSize is the square pixel size requested from the image
// provider, chosen so a full-bleed page needs no upscaling at print
// resolution.
const DefaultImageSize = 2550

// stylePhrases maps each art style preset to the prompt fragment that
// evokes it. Unknown styles fall back to watercolor.
var stylePhrases = map[books.ArtStyle]string{
	books.StyleWatercolor: "soft watercolor illustration with gentle washes of color",
	books.StyleCartoon:    "bright cartoon illustration with bold outlines and flat colors",
	books.StyleClassic:    "classic storybook illustration with fine ink lines and muted tones",
	books.StyleWhimsical:  "whimsical illustration with playful proportions and dreamy light",
	books.StylePastel:     "pastel illustration with chalky texture and powdery colors",
	books.StyleBold:       "bold graphic illustration with strong shapes and saturated colors",
}

const qualitySuffix = "children's picture book art, warm and friendly, no text or lettering"

// StylePhrase returns the prompt fragment for a style preset.
func StylePhrase(style books.ArtStyle) string {
	if p, ok := stylePhrases[style]; ok {
		return p
	}
	return stylePhrases[books.StyleWatercolor]
}

// BlobReader reads stored asset bytes by handle.
type BlobReader interface {
	Read(handle string) ([]byte, error)
}

// GeneratorConfig wires a Generator. Text is optional; without it reference
// images are ignored and character descriptions are used directly.
type GeneratorConfig struct {
	Image  providers.ImageProvider
	Text   providers.TextProvider
	Blobs  BlobReader
	Fetch  *providers.Fetcher
	Pacer  *providers.Pacer
	Retry  providers.RetryPolicy
	Logger *slog.Logger
}

// Generator produces illustrations. Every prompt passes the content gate
// before any provider call, so regenerated prompts are screened the same
// way pipeline-built ones are.
type Generator struct {
	image  providers.ImageProvider
	text   providers.TextProvider
	blobs  BlobReader
	fetch  *providers.Fetcher
	pacer  *providers.Pacer
	retry  providers.RetryPolicy
	logger *slog.Logger

	// Style prompts are stable per character per run.
	styles *cache.Cache
}

// NewGenerator creates a Generator, filling zero-valued config with
// defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = providers.DefaultRetryPolicy
	}
	if cfg.Fetch == nil {
		cfg.Fetch = providers.NewFetcher(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{
		image:  cfg.Image,
		text:   cfg.Text,
		blobs:  cfg.Blobs,
		fetch:  cfg.Fetch,
		pacer:  cfg.Pacer,
		retry:  cfg.Retry,
		logger: cfg.Logger,
		styles: cache.New(24*time.Hour, time.Hour),
	}
}

// GeneratePage renders one page illustration and returns the image bytes.
func (g *Generator) GeneratePage(ctx context.Context, prompt string, style books.ArtStyle, chars []books.Character) ([]byte, string, error) {
	full, err := g.buildPrompt(prompt, style, chars)
	if err != nil {
		return nil, "", err
	}
	return g.render(ctx, full)
}

// GenerateCover renders the front cover illustration. The title is woven
// into the scene description but the image itself must stay text-free; the
// title is typeset later by the print composer.
func (g *Generator) GenerateCover(ctx context.Context, coverPrompt string, style books.ArtStyle, chars []books.Character) ([]byte, string, error) {
	full, err := g.buildPrompt(coverPrompt+", cover composition with open space near the top", style, chars)
	if err != nil {
		return nil, "", err
	}
	return g.render(ctx, full)
}

// buildPrompt gates and assembles the final image prompt: the caller's
// scene, the style phrase, one clause per character, and the quality
// suffix. Character clauses prefer extracted style prompts over raw
// descriptions.
func (g *Generator) buildPrompt(prompt string, style books.ArtStyle, chars []books.Character) (string, error) {
	if report := safety.DetectInjection(prompt); report.Detected {
		return "", &providers.InjectionError{Field: "image prompt", Patterns: report.MatchedPatterns}
	}
	if v := safety.Classify(prompt); !v.Approved() {
		return "", &providers.ModerationError{Severity: v.Severity, Flags: v.Flags}
	}
	// Each character is gated individually, injection first, on the raw
	// text. The error names the character by position, not by name, since
	// the name itself is part of the rejected text.
	for i, ch := range chars {
		if report := safety.DetectInjection(ch.Name + " " + ch.Description); report.Detected {
			return "", &providers.InjectionError{
				Field:    fmt.Sprintf("character[%d]", i),
				Patterns: report.MatchedPatterns,
			}
		}
		if v := safety.Classify(ch.Name + " " + ch.Description); !v.Approved() {
			return "", &providers.ModerationError{Severity: v.Severity, Flags: v.Flags}
		}
	}

	parts := []string{safety.SanitizeForPrompt(prompt), StylePhrase(style)}
	for _, ch := range chars {
		desc := ch.StylePrompt
		if desc == "" {
			desc = safety.SanitizeForPrompt(ch.Description)
		}
		if desc == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", safety.SanitizeForPrompt(ch.Name), desc))
	}
	parts = append(parts, qualitySuffix)
	return strings.Join(parts, ". "), nil
}

// render calls the image provider under the pacer and retry policy and
// resolves URL results into bytes.
func (g *Generator) render(ctx context.Context, prompt string) ([]byte, string, error) {
	var result *providers.ImageResult
	err := providers.Retry(ctx, g.retry, func() error {
		if g.pacer != nil {
			if werr := g.pacer.Wait(ctx); werr != nil {
				return werr
			}
		}
		var cerr error
		result, cerr = g.image.Generate(ctx, &providers.ImageRequest{
			Prompt: prompt,
			Width:  DefaultImageSize,
			Height: DefaultImageSize,
		})
		return cerr
	})
	if err != nil {
		return nil, "", fmt.Errorf("image generation: %w", err)
	}

	if len(result.Bytes) > 0 {
		return result.Bytes, result.MimeType, nil
	}
	if result.URL == "" {
		return nil, "", &providers.ValidationError{Msg: "image result carries neither bytes nor URL"}
	}
	data, contentType, err := g.fetch.Fetch(ctx, result.URL)
	if err != nil {
		return nil, "", fmt.Errorf("fetching generated image: %w", err)
	}
	return data, contentType, nil
}

const styleExtractionPrompt = `Describe the character in this photo for a ` +
	`children's book illustrator in one sentence: species or kind, colors, ` +
	`distinctive features, and clothing. Respond with JSON: {"style_prompt": "..."}`

// StylePrompt returns a stable illustration description for a character
// with a reference image, extracting it from the photo on first use. It
// returns an empty string when no vision provider or reference image is
// available; extraction failures are for the caller to log, not fatal.
func (g *Generator) StylePrompt(ctx context.Context, ch *books.Character) (string, error) {
	if ch.StylePrompt != "" {
		return ch.StylePrompt, nil
	}
	if g.text == nil || g.blobs == nil || ch.ReferenceImage == "" {
		return "", nil
	}

	key := ch.ID
	if key == "" {
		key = ch.Name + "/" + ch.ReferenceImage
	}
	if v, found := g.styles.Get(key); found {
		return v.(string), nil
	}

	img, err := g.blobs.Read(ch.ReferenceImage)
	if err != nil {
		return "", fmt.Errorf("reading reference image for %q: %w", ch.Name, err)
	}

	var result *providers.TextResult
	err = providers.Retry(ctx, g.retry, func() error {
		if g.pacer != nil {
			if werr := g.pacer.Wait(ctx); werr != nil {
				return werr
			}
		}
		var cerr error
		result, cerr = g.text.Complete(ctx, &providers.TextRequest{
			System: "You describe characters for illustrators. Respond only with JSON.",
			Prompt: styleExtractionPrompt,
			Images: [][]byte{img},
		})
		return cerr
	})
	if err != nil {
		return "", fmt.Errorf("style extraction for %q: %w", ch.Name, err)
	}

	prompt := parseStylePrompt(result.Content)
	if prompt == "" {
		return "", fmt.Errorf("style extraction for %q returned no description", ch.Name)
	}
	prompt = safety.SanitizeForPrompt(prompt)
	g.styles.Set(key, prompt, cache.DefaultExpiration)
	return prompt, nil
}

func parseStylePrompt(content string) string {
	s := strings.TrimSpace(content)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		var parsed struct {
			StylePrompt string `json:"style_prompt"`
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &parsed); err == nil && parsed.StylePrompt != "" {
			return parsed.StylePrompt
		}
	}
	// Some models answer in plain prose despite the instruction.
	if start < 0 && s != "" {
		return s
	}
	return ""
}
