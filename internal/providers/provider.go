// Package providers contains the external text- and image-generation
// clients, the shared call pacer, and the retry combinator used by every
// generator component.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// TextProvider is the contract for a text-generation service.
type TextProvider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete sends a completion request.
	Complete(ctx context.Context, req *TextRequest) (*TextResult, error)
}

// ImageProvider is the contract for an image-generation service.
type ImageProvider interface {
	// Name returns the provider identifier.
	Name() string

	// Generate renders a single image. The result carries a URL, raw
	// bytes, or both depending on what the provider returns.
	Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}

// TextRequest is a request to a text provider.
type TextRequest struct {
	System string
	Prompt string

	// Images holds raw attachment bytes for vision requests
	// (reference-image style extraction).
	Images [][]byte

	// Model selection (provider default if empty)
	Model string

	Temperature float64
	MaxTokens   int

	// JSONSchema, if set, requests structured output conforming to the
	// schema. The provider is asked for json_schema response format; the
	// caller still validates locally.
	JSONSchema json.RawMessage
}

// TextResult is the response from a text provider.
type TextResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ImageRequest is a request to an image provider. Width and Height are only
// honored when BOTH are set; otherwise the provider's default square print
// target is used.
type ImageRequest struct {
	Prompt string
	Width  int
	Height int
}

// ImageResult is the response from an image provider.
type ImageResult struct {
	URL      string `json:"url,omitempty"`
	Bytes    []byte `json:"-"`
	MimeType string `json:"mime_type,omitempty"`

	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`
}
