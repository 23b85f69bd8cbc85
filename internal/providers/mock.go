package providers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const MockProviderName = "mock"

// MockTextClient is a TextProvider for testing.
type MockTextClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAttempts int // Fail the first N requests with a transient error
	ResponseText string
	Responses    []string // Scripted responses, consumed in order (falls back to ResponseText)

	// State
	requestCount atomic.Int64
}

// NewMockTextClient creates a mock text client with sensible defaults.
func NewMockTextClient() *MockTextClient {
	return &MockTextClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockTextClient) Name() string {
	return MockProviderName
}

// RequestCount returns how many requests have been made.
func (c *MockTextClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Complete returns the scripted response.
func (c *MockTextClient) Complete(ctx context.Context, req *TextRequest) (*TextResult, error) {
	n := c.requestCount.Add(1)

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if c.ShouldFail || n <= int64(c.FailAttempts) {
		return nil, &ProviderError{Provider: MockProviderName, Err: fmt.Errorf("simulated failure (request %d)", n)}
	}

	content := c.ResponseText
	if len(c.Responses) > 0 {
		idx := int(n-1) - c.FailAttempts
		if idx >= 0 && idx < len(c.Responses) {
			content = c.Responses[idx]
		}
	}

	return &TextResult{
		Content:       content,
		Provider:      MockProviderName,
		ModelUsed:     "mock-model",
		TotalTokens:   len(content) / 4,
		ExecutionTime: c.Latency,
	}, nil
}

// MockImageClient is an ImageProvider for testing.
type MockImageClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAttempts int
	FailPrompts  []string // Requests whose prompt contains one of these fail
	ResponseURL  string
	Bytes        []byte

	requestCount atomic.Int64
}

// NewMockImageClient creates a mock image client returning a tiny PNG.
func NewMockImageClient() *MockImageClient {
	return &MockImageClient{
		Bytes: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
	}
}

// Name returns the client identifier.
func (c *MockImageClient) Name() string {
	return MockProviderName
}

// RequestCount returns how many requests have been made.
func (c *MockImageClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Generate returns the scripted image result.
func (c *MockImageClient) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	n := c.requestCount.Add(1)

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if c.ShouldFail || n <= int64(c.FailAttempts) {
		return nil, &ProviderError{Provider: MockProviderName, Err: fmt.Errorf("simulated failure (request %d)", n)}
	}
	for _, marker := range c.FailPrompts {
		if marker != "" && req != nil && containsFold(req.Prompt, marker) {
			return nil, &ProviderError{Provider: MockProviderName, Err: fmt.Errorf("simulated failure for prompt marker %q", marker)}
		}
	}

	result := &ImageResult{
		URL:           c.ResponseURL,
		Provider:      MockProviderName,
		ModelUsed:     "mock-image-model",
		ExecutionTime: c.Latency,
	}
	if len(c.Bytes) > 0 {
		result.Bytes = append([]byte(nil), c.Bytes...)
		result.MimeType = "image/png"
	}
	return result, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var (
	_ TextProvider  = (*MockTextClient)(nil)
	_ ImageProvider = (*MockImageClient)(nil)
)
