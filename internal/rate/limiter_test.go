package rate

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketFirstWaitIsImmediate(t *testing.T) {
	tb := NewTokenBucket(1)
	defer tb.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
}

func TestTokenBucketWaitHonorsCancellation(t *testing.T) {
	tb := NewTokenBucket(1)
	defer tb.Stop()

	// Drain the initial token so the next wait must block.
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tb.Wait(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestTokenBucketStopReturns(t *testing.T) {
	tb := NewTokenBucket(100)
	done := make(chan struct{})
	go func() {
		tb.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop did not return")
	}
}
