package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paneferry/paneferry/internal/vfs"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("read tcp: %w", vfs.ErrConnectivity)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return vfs.ErrConnectivity
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, vfs.ErrConnectivity) {
		t.Errorf("Expected wrapped connectivity error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestDo_AuthenticationNeverRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return vfs.ErrAuthentication
	})
	if !errors.Is(err, vfs.ErrAuthentication) {
		t.Fatalf("Expected auth error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Auth errors must not be retried; got %d attempts", calls)
	}
}

func TestDo_FatalNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return vfs.ErrNotFound
	})
	if !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("Expected not-found error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Fatal errors must not be retried; got %d attempts", calls)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return vfs.ErrConnectivity
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no attempts with a cancelled context, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	cfg := fastConfig(3)
	var retried []int
	cfg.OnRetry = func(attempt int, err error) {
		retried = append(retried, attempt)
	}

	_ = Do(context.Background(), cfg, func() error {
		return vfs.ErrConnectivity
	})
	if len(retried) != 2 {
		t.Fatalf("Expected 2 retry callbacks, got %d", len(retried))
	}
	if retried[0] != 1 || retried[1] != 2 {
		t.Errorf("Expected attempts [1 2], got %v", retried)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 20; i++ {
			d := Backoff(attempt, time.Second, 15*time.Second)
			if d < 0 || d >= 15*time.Second {
				t.Fatalf("attempt %d: delay %v out of range", attempt, d)
			}
		}
	}
}

func TestBackoff_ZeroInputs(t *testing.T) {
	if d := Backoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("Expected 0 for attempt 0, got %v", d)
	}
	if d := Backoff(3, 0, time.Minute); d != 0 {
		t.Errorf("Expected 0 for zero initial delay, got %v", d)
	}
}
