package crawler

import (
	"context"
	"testing"
	"time"
)

// TestRateLimiterSpacesSameHost tests that successive waits for one host are
// at least the configured delay apart
func TestRateLimiterSpacesSameHost(t *testing.T) {
	delay := 50 * time.Millisecond
	rl := NewRateLimiter(delay)
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx, "example.com", delay); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}
	if err := rl.Wait(ctx, "example.com", delay); err != nil {
		t.Fatalf("Second wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < delay {
		t.Errorf("Expected successive waits at least %v apart, got %v", delay, elapsed)
	}
}

// TestRateLimiterHostsAreIndependent tests that waiting on one host does not
// delay another
func TestRateLimiterHostsAreIndependent(t *testing.T) {
	delay := 200 * time.Millisecond
	rl := NewRateLimiter(delay)
	ctx := context.Background()

	if err := rl.Wait(ctx, "a.example.com", delay); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// a.example.com is now throttled; b.example.com must not be.
	start := time.Now()
	if err := rl.Wait(ctx, "b.example.com", delay); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= delay {
		t.Errorf("Expected independent host to proceed immediately, waited %v", elapsed)
	}
}

// TestRateLimiterZeroDelay tests that a zero delay never blocks
func TestRateLimiterZeroDelay(t *testing.T) {
	rl := NewRateLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := rl.Wait(ctx, "example.com", 0); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected zero-delay waits to return immediately, took %v", elapsed)
	}
}

// TestRateLimiterEmptyHost tests that an empty host is a no-op
func TestRateLimiterEmptyHost(t *testing.T) {
	rl := NewRateLimiter(time.Second)

	start := time.Now()
	if err := rl.Wait(context.Background(), "", time.Second); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := rl.Wait(context.Background(), "", time.Second); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected empty host to skip rate limiting, took %v", elapsed)
	}
}

// TestRateLimiterContextCancellation tests that a cancelled context aborts
// the wait
func TestRateLimiterContextCancellation(t *testing.T) {
	delay := 5 * time.Second
	rl := NewRateLimiter(delay)

	if err := rl.Wait(context.Background(), "example.com", delay); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx, "example.com", delay)
	if err == nil {
		t.Fatal("Expected error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed >= delay {
		t.Errorf("Expected cancellation to interrupt the wait, took %v", elapsed)
	}
}
