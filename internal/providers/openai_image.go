package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIImageName         = "openai-images"
	openAIImageDefaultModel = "dall-e-3"
)

// OpenAIImageConfig holds configuration for the OpenAI image client.
type OpenAIImageConfig struct {
	APIKey     string
	Model      string        // "dall-e-3" (default) or "gpt-image-1"
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIImageClient implements ImageProvider using the official OpenAI SDK.
type OpenAIImageClient struct {
	model  string
	client openai.Client
}

// NewOpenAIImageClient creates a new OpenAI image client.
func NewOpenAIImageClient(cfg OpenAIImageConfig) *OpenAIImageClient {
	if cfg.Model == "" {
		cfg.Model = openAIImageDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // retry policy belongs to the caller
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIImageClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIImageClient) Name() string {
	return OpenAIImageName
}

// Model returns the configured model.
func (c *OpenAIImageClient) Model() string {
	return c.model
}

// Generate renders one image for the prompt.
func (c *OpenAIImageClient) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()

	if req == nil || req.Prompt == "" {
		return nil, &ValidationError{Msg: "image prompt is required"}
	}

	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(c.model),
		N:      openai.Int(1),
		Size:   nearestImageSize(req.Width, req.Height),
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, mapOpenAIImageError(err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, &ValidationError{Msg: "image response contained no data"}
	}

	img := resp.Data[0]
	result := &ImageResult{
		URL:           img.URL,
		Provider:      OpenAIImageName,
		ModelUsed:     c.model,
		ExecutionTime: time.Since(start),
	}

	if img.B64JSON != "" {
		raw, decErr := base64.StdEncoding.DecodeString(img.B64JSON)
		if decErr != nil {
			return nil, &ValidationError{Msg: "undecodable b64_json image payload", Err: decErr}
		}
		result.Bytes = raw
		result.MimeType = "image/png"
	}

	if result.URL == "" && len(result.Bytes) == 0 {
		return nil, &ValidationError{Msg: "image response carried neither url nor bytes"}
	}

	return result, nil
}

// nearestImageSize maps a requested pixel box onto the sizes the API
// supports. The print target is square, so square is the default; an
// explicit non-square override picks the closest landscape/portrait size.
func nearestImageSize(width, height int) openai.ImageGenerateParamsSize {
	if width <= 0 || height <= 0 || width == height {
		return openai.ImageGenerateParamsSize1024x1024
	}
	if width > height {
		return openai.ImageGenerateParamsSize1792x1024
	}
	return openai.ImageGenerateParamsSize1024x1792
}

func mapOpenAIImageError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &ProviderError{
				Provider: OpenAIImageName,
				Err:      fmt.Errorf("status %d: %s", apiErr.StatusCode, apiErr.Message),
			}
		}
		// 400s from the images API are content-policy or prompt problems;
		// retrying the same prompt will not help.
		return fmt.Errorf("image generation rejected (status %d): %s", apiErr.StatusCode, apiErr.Message)
	}
	return &ProviderError{Provider: OpenAIImageName, Err: err}
}

var _ ImageProvider = (*OpenAIImageClient)(nil)
