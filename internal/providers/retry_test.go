package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	t.Run("transient failures are retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func() error {
			calls++
			if calls < 3 {
				return &ProviderError{Provider: "test", Err: errors.New("boom")}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("attempts are bounded and last error surfaces", func(t *testing.T) {
		calls := 0
		wantErr := &ProviderError{Provider: "test", Err: errors.New("always")}
		err := Retry(context.Background(), policy, func() error {
			calls++
			return wantErr
		})
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Errorf("expected the final ProviderError, got %T: %v", err, err)
		}
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func() error {
			calls++
			return &ValidationError{Msg: "bad shape"}
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})

	t.Run("moderation errors are not retried", func(t *testing.T) {
		calls := 0
		Retry(context.Background(), policy, func() error {
			calls++
			return &ModerationError{}
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, RetryPolicy{Attempts: 5, Delay: 50 * time.Millisecond}, func() error {
			calls++
			cancel()
			return &ProviderError{Provider: "test", Err: errors.New("boom")}
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls > 2 {
			t.Errorf("calls = %d, want <= 2 after cancel", calls)
		}
	})
}

func TestPacer(t *testing.T) {
	t.Run("enforces spacing", func(t *testing.T) {
		p := NewPacer(20 * time.Millisecond)
		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := p.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		// First call is immediate, the next two wait one interval each.
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("elapsed = %v, want >= 40ms", elapsed)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		p := NewPacer(time.Hour)
		p.Wait(context.Background()) // consume the initial slot

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := p.Wait(ctx); err == nil {
			t.Error("expected context error")
		}
	})
}

func TestModerationErrorMessage(t *testing.T) {
	// The message must describe categories, never the offending text.
	err := &ModerationError{
		Severity: 3,
		Flags:    []string{"denylisted topic: violence"},
	}
	msg := err.Error()
	if msg == "" {
		t.Fatal("empty message")
	}
	for _, fragment := range []string{"severity", "violence"} {
		if !contains(msg, fragment) {
			t.Errorf("message %q missing %q", msg, fragment)
		}
	}
}

func contains(s, sub string) bool { return len(s) >= len(sub) && containsFold(s, sub) }
