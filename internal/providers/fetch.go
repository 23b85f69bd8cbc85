package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxFetchBytes caps downloaded image payloads (print-DPI PNGs run ~10MB).
const maxFetchBytes = 32 << 20

// Fetcher downloads provider-returned image URLs so storage is always
// byte-addressable.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher with the given timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Fetcher{client: client}
}

// Fetch downloads url and returns the body bytes and content type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", &ProviderError{Provider: "fetch", Err: err}
	}
	if resp.IsError() {
		return nil, "", &ProviderError{
			Provider: "fetch",
			Err:      fmt.Errorf("status %d fetching image", resp.StatusCode()),
		}
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, "", &ValidationError{Msg: "image url returned empty body"}
	}
	if len(body) > maxFetchBytes {
		return nil, "", &ValidationError{Msg: fmt.Sprintf("image payload exceeds %d bytes", maxFetchBytes)}
	}

	return body, resp.Header().Get("Content-Type"), nil
}
