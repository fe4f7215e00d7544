package exchange

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := rl.Order.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected burst of 4 to pass near-instantly, took %v", elapsed)
	}
}

func TestRateLimiterSeparatesOrderAndCancel(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter()
	if rl.Order == rl.Cancel {
		t.Fatal("Order and Cancel must be independent limiters")
	}
}
