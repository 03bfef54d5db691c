package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errUnauthorized = errors.New("status 401")

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("instagram_profile")

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.Operation != "instagram_profile" {
		t.Errorf("Operation = %q", cfg.Operation)
	}
}

func TestDelaySchedule(t *testing.T) {
	cfg := DefaultConfig("test")

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 5000 * time.Millisecond},
		{10, 5000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			if got := cfg.Delay(tt.n); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errUnauthorized, false},
		{"marked error", Retryable(errUnauthorized), true},
		{"wrapped marked error", fmt.Errorf("fetch: %w", Retryable(errUnauthorized)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	if !errors.Is(Retryable(errUnauthorized), errUnauthorized) {
		t.Error("Retryable should preserve the wrapped error for errors.Is")
	}
}

// recordingSleep captures requested delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	cfg := DefaultConfig("test")
	cfg.Sleep = recordingSleep(&delays)

	calls := 0
	got, err := Do(context.Background(), cfg, func(_ context.Context, attempt int) (int, error) {
		calls++
		if attempt < 3 {
			return 401, Retryable(errUnauthorized)
		}
		return 200, nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 200 {
		t.Errorf("Do() = %d, want 200", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	var total time.Duration
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
		total += delays[i]
	}
	if total != 3000*time.Millisecond {
		t.Errorf("total delay = %v, want 3s", total)
	}
}

func TestDoRealTimingIsBounded(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Operation: "timing"}

	start := time.Now()
	_, err := Do(context.Background(), cfg, func(_ context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", Retryable(errUnauthorized)
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %v, want >= 60ms (20ms + 40ms)", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed %v, far beyond the expected 60ms", elapsed)
	}
}

func TestDoNonRetryableShortCircuits(t *testing.T) {
	var delays []time.Duration
	cfg := DefaultConfig("test")
	cfg.Sleep = recordingSleep(&delays)

	errForbidden := errors.New("status 403")
	calls := 0
	_, err := Do(context.Background(), cfg, func(_ context.Context, _ int) (int, error) {
		calls++
		return 403, errForbidden
	})

	if !errors.Is(err, errForbidden) {
		t.Errorf("err = %v, want %v", err, errForbidden)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(delays) != 0 {
		t.Errorf("no backoff expected, got %v", delays)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	cfg := DefaultConfig("test")
	cfg.Sleep = recordingSleep(&delays)

	calls := 0
	got, err := Do(context.Background(), cfg, func(_ context.Context, attempt int) (int, error) {
		calls++
		return attempt, Retryable(errUnauthorized)
	})

	if !errors.Is(err, errUnauthorized) {
		t.Errorf("err = %v, want wrapped %v", err, errUnauthorized)
	}
	if got != 3 {
		t.Errorf("last value = %d, want 3", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Errorf("expected 2 backoff waits (none after last attempt), got %d", len(delays))
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Operation: "cancel"}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, func(_ context.Context, _ int) (int, error) {
			calls++
			return 0, Retryable(errUnauthorized)
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoZeroAttemptsStillCallsOnce(t *testing.T) {
	calls := 0
	_, _ = Do(context.Background(), Config{}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
