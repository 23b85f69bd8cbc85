// Package narrative turns a book request into a complete, validated story
// via the text provider, with content gating on both the request and the
// generated result.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/books"
	"github.com/fableforge/fableforge/internal/providers"
	"github.com/fableforge/fableforge/internal/safety"
)

// GeneratorConfig wires a Generator.
type GeneratorConfig struct {
	Text        providers.TextProvider
	Pacer       *providers.Pacer
	Retry       providers.RetryPolicy
	Model       string
	Temperature float64
	Logger      *slog.Logger
}

// Generator produces narratives. Every free-text field of the request is
// screened for prompt injection and disallowed content before any provider
// call is made.
type Generator struct {
	text        providers.TextProvider
	pacer       *providers.Pacer
	retry       providers.RetryPolicy
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewGenerator creates a Generator, filling zero-valued config with
// defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = providers.DefaultRetryPolicy
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{
		text:        cfg.Text,
		pacer:       cfg.Pacer,
		retry:       cfg.Retry,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Generate gates the request, calls the text provider, and returns a
// validated story. A malformed or disallowed result is discarded whole.
func (g *Generator) Generate(ctx context.Context, req *books.BookRequest) (*books.StoryResult, error) {
	clean, err := g.gate(req)
	if err != nil {
		return nil, err
	}

	system, user := buildPrompts(clean)
	start := time.Now()

	var result *providers.TextResult
	err = providers.Retry(ctx, g.retry, func() error {
		if g.pacer != nil {
			if werr := g.pacer.Wait(ctx); werr != nil {
				return werr
			}
		}
		var cerr error
		result, cerr = g.text.Complete(ctx, &providers.TextRequest{
			System:      system,
			Prompt:      user,
			Model:       g.model,
			Temperature: g.temperature,
			JSONSchema:  json.RawMessage(storySchemaJSON),
		})
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("narrative generation: %w", err)
	}

	story, err := parseStory(result.Content)
	if err != nil {
		return nil, err
	}
	if err := g.moderateOutput(story); err != nil {
		return nil, err
	}

	g.logger.Info("narrative generated",
		"provider", result.Provider,
		"model", result.ModelUsed,
		"pages", len(story.Pages),
		"duration", time.Since(start))
	return story, nil
}

// gate screens every free-text field of the request. Injection detection
// runs first and aborts before any sanitization. The combined verdict
// aborts above low severity, and also when more than three flags pile up
// at low severity: a request that trips the classifier across many fields
// is treated like a medium hit rather than waved through. On success it
// returns a sanitized copy of the request, leaving the original untouched.
func (g *Generator) gate(req *books.BookRequest) (*books.BookRequest, error) {
	fields := requestFields(req)

	for name, text := range fields {
		if report := safety.DetectInjection(text); report.Detected {
			return nil, &providers.InjectionError{Field: name, Patterns: report.MatchedPatterns}
		}
	}

	verdict := safety.Verdict{}
	for name, text := range fields {
		var v safety.Verdict
		if name == "theme" {
			v = safety.ClassifyWithTheme(text, text)
		} else {
			v = safety.Classify(text)
		}
		if v.Severity > verdict.Severity {
			verdict.Severity = v.Severity
		}
		verdict.Flags = append(verdict.Flags, v.Flags...)
	}
	if !verdict.Approved() || verdict.RequiresReview() {
		g.logger.Warn("request failed content gate",
			"severity", verdict.Severity.String(),
			"flags", len(verdict.Flags))
		return nil, &providers.ModerationError{Severity: verdict.Severity, Flags: verdict.Flags}
	}

	clean := *req
	clean.Title = safety.SanitizeForPrompt(req.Title)
	clean.Author = safety.SanitizeForPrompt(req.Author)
	clean.Theme = safety.SanitizeForPrompt(req.Theme)
	clean.Setting.Description = safety.SanitizeForPrompt(req.Setting.Description)
	clean.Setting.TimeOfDay = safety.SanitizeForPrompt(req.Setting.TimeOfDay)
	clean.Setting.Season = safety.SanitizeForPrompt(req.Setting.Season)
	clean.Setting.Notes = safety.SanitizeForPrompt(req.Setting.Notes)
	clean.Characters = make([]books.Character, len(req.Characters))
	for i, c := range req.Characters {
		c.Name = safety.SanitizeForPrompt(c.Name)
		c.Description = safety.SanitizeForPrompt(c.Description)
		c.Relationship = safety.SanitizeForPrompt(c.Relationship)
		clean.Characters[i] = c
	}
	return &clean, nil
}

// moderateOutput re-screens the generated story. Only high severity
// discards the result; mildly flagged output is accepted so a single odd
// word in 24 pages does not torch an otherwise good story.
func (g *Generator) moderateOutput(story *books.StoryResult) error {
	var texts []string
	texts = append(texts, story.Title, story.CoverPrompt)
	for _, p := range story.Pages {
		texts = append(texts, p.Text, p.ImagePrompt)
	}

	verdict := safety.Verdict{}
	for _, t := range texts {
		v := safety.Classify(t)
		if v.Severity > verdict.Severity {
			verdict.Severity = v.Severity
		}
		verdict.Flags = append(verdict.Flags, v.Flags...)
	}
	if verdict.Severity >= safety.SeverityHigh {
		g.logger.Warn("generated story failed content gate", "flags", len(verdict.Flags))
		return &providers.ModerationError{Severity: verdict.Severity, Flags: verdict.Flags}
	}
	return nil
}

func requestFields(req *books.BookRequest) map[string]string {
	fields := map[string]string{
		"title":               req.Title,
		"author":              req.Author,
		"theme":               req.Theme,
		"setting_description": req.Setting.Description,
		"setting_time_of_day": req.Setting.TimeOfDay,
		"setting_season":      req.Setting.Season,
		"setting_notes":       req.Setting.Notes,
	}
	for i, c := range req.Characters {
		prefix := fmt.Sprintf("character[%d].", i)
		fields[prefix+"name"] = c.Name
		fields[prefix+"description"] = c.Description
		fields[prefix+"relationship"] = c.Relationship
	}
	for name, text := range fields {
		if text == "" {
			delete(fields, name)
		}
	}
	return fields
}

const systemPrompt = `You are a children's picture book author. You write warm, ` +
	`age-appropriate stories for readers aged three to six, in simple language ` +
	`with short sentences. You respond only with JSON matching the requested ` +
	`schema: a title, a cover illustration prompt, and exactly 24 pages. Page 1 ` +
	`is the title page, pages 2 through 23 tell the story, and page 24 is the ` +
	`back cover. Every page carries an illustration prompt describing a single ` +
	`scene with no text or lettering in it.`

func buildPrompts(req *books.BookRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s children's story about %s.\n", req.Mood, req.Theme)
	if req.Title != "" {
		fmt.Fprintf(&b, "Working title: %s\n", req.Title)
	}
	if req.Setting.Description != "" {
		fmt.Fprintf(&b, "Setting: %s", req.Setting.Description)
		if req.Setting.TimeOfDay != "" {
			fmt.Fprintf(&b, ", %s", req.Setting.TimeOfDay)
		}
		if req.Setting.Season != "" {
			fmt.Fprintf(&b, ", in %s", req.Setting.Season)
		}
		b.WriteString("\n")
	}
	if req.Setting.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", req.Setting.Notes)
	}
	if len(req.Characters) > 0 {
		b.WriteString("Characters:\n")
		for _, c := range req.Characters {
			fmt.Fprintf(&b, "- %s (%s): %s", c.Name, c.Role, c.Description)
			if c.Relationship != "" {
				fmt.Fprintf(&b, ", %s", c.Relationship)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "Illustration style: %s.\n", req.ArtStyle)
	return systemPrompt, b.String()
}

// parseStory extracts the JSON object from the provider's response, checks
// it against the story schema, and decodes it strictly. Any failure yields
// a ValidationError; the result is never repaired.
func parseStory(content string) (*books.StoryResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, &providers.ValidationError{Msg: "no JSON object in response", Err: err}
	}

	var loose any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, &providers.ValidationError{Msg: "response is not valid JSON", Err: err}
	}
	if err := storySchema.Validate(loose); err != nil {
		return nil, &providers.ValidationError{Msg: "response does not match story schema", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var story books.StoryResult
	if err := dec.Decode(&story); err != nil {
		return nil, &providers.ValidationError{Msg: "decoding story", Err: err}
	}
	if err := story.Validate(); err != nil {
		return nil, &providers.ValidationError{Msg: "story failed validation", Err: err}
	}
	return &story, nil
}

// extractJSON strips markdown fences and returns the outermost JSON object.
func extractJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no object delimiters found")
	}
	return json.RawMessage(s[start : end+1]), nil
}
