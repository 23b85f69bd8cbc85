package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	OpenAITextName    = "openai"
	OpenAITextBaseURL = "https://api.openai.com/v1"

	defaultTextModel = "gpt-4o"
)

// OpenAITextConfig holds configuration for the chat completions client.
type OpenAITextConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAITextClient implements TextProvider against an OpenAI-compatible
// chat completions endpoint. It performs exactly one attempt per call;
// retry policy belongs to the caller (see Retry).
type OpenAITextClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOpenAITextClient creates a new chat completions client.
func NewOpenAITextClient(cfg OpenAITextConfig) *OpenAITextClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAITextBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultTextModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAITextClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       httpClient,
	}
}

// Name returns the provider identifier.
func (c *OpenAITextClient) Name() string {
	return OpenAITextName
}

// Complete sends a chat completion request.
func (c *OpenAITextClient) Complete(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	ccReq := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		ccReq.Messages = append(ccReq.Messages, chatMessage{Role: "system", Content: req.System})
	}

	// Vision requests carry multipart content; plain requests a bare string.
	if len(req.Images) > 0 {
		content := []chatContentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			content = append(content, chatContentPart{
				Type: "image_url",
				ImageURL: &chatImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		ccReq.Messages = append(ccReq.Messages, chatMessage{Role: "user", Content: content})
	} else {
		ccReq.Messages = append(ccReq.Messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	if len(req.JSONSchema) > 0 {
		ccReq.ResponseFormat = &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatJSONSchema{
				Name:   "structured_response",
				Schema: req.JSONSchema,
				Strict: true,
			},
		}
	}

	ccResp, err := c.doRequest(ctx, "/chat/completions", &ccReq)
	if err != nil {
		return nil, err
	}

	if len(ccResp.Choices) == 0 {
		return nil, &ValidationError{Msg: "no choices in completion response"}
	}

	content := ""
	switch v := ccResp.Choices[0].Message.Content.(type) {
	case string:
		content = v
	case nil:
		// leave empty
	default:
		b, mErr := json.Marshal(v)
		if mErr != nil {
			return nil, &ValidationError{Msg: "unparseable completion content", Err: mErr}
		}
		content = string(b)
	}

	return &TextResult{
		Content:          content,
		PromptTokens:     ccResp.Usage.PromptTokens,
		CompletionTokens: ccResp.Usage.CompletionTokens,
		TotalTokens:      ccResp.Usage.TotalTokens,
		Provider:         OpenAITextName,
		ModelUsed:        ccResp.Model,
		ExecutionTime:    time.Since(start),
	}, nil
}

func (c *OpenAITextClient) doRequest(ctx context.Context, path string, body any) (*chatResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAITextName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAITextName, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &ProviderError{
			Provider: OpenAITextName,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(respBody)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion error (status %d): %s", resp.StatusCode, truncateBody(respBody))
	}

	var ccResp chatResponse
	if err := json.Unmarshal(respBody, &ccResp); err != nil {
		return nil, &ValidationError{Msg: "unparseable completion response", Err: err}
	}
	return &ccResp, nil
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Chat completions wire types.

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []chatContentPart
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// chatResponseFormat and chatJSONSchema follow the API's structured-output
// shape: the schema rides inside a named wrapper, not at the top level.
type chatResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ TextProvider = (*OpenAITextClient)(nil)
