package runner

import (
	"context"
	"testing"
	"time"
)

// admitted counts how many of n waits return before a short deadline
func admitted(rl *RateLimiter, n int) int {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	count := 0
	for i := 0; i < n; i++ {
		if rl.Wait(ctx) == nil {
			count++
		}
	}
	return count
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0)

	if rl.Enabled() {
		t.Error("expected limiter to be disabled")
	}
	if got := admitted(rl, 100); got != 100 {
		t.Errorf("disabled limiter should admit everything, got %d", got)
	}
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(5)

	if !rl.Enabled() {
		t.Fatal("expected limiter to be enabled")
	}
	if got := admitted(rl, 10); got != 5 {
		t.Errorf("expected burst of 5, got %d", got)
	}
}

func TestRateLimiter_FractionalRate(t *testing.T) {
	rl := NewRateLimiter(0.5)

	if got := admitted(rl, 2); got != 1 {
		t.Errorf("fractional rate should admit exactly the first execution, got %d", got)
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("expected wait to fail on a cancelled context")
	}
}
