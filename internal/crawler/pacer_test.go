package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"subcrawler/internal/config"
)

func TestHostPacerSpacesSameHost(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{})
	delay := 50 * time.Millisecond

	start := time.Now()
	if err := p.Wait(context.Background(), "a.test", delay); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := p.Wait(context.Background(), "a.test", delay); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("second fetch ran after %v, want at least %v", elapsed, delay)
	}
}

func TestHostPacerHostsAreIndependent(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{})
	delay := 3 * time.Second

	if err := p.Wait(context.Background(), "a.test", delay); err != nil {
		t.Fatalf("prime a.test: %v", err)
	}

	start := time.Now()
	if err := p.Wait(context.Background(), "b.test", delay); err != nil {
		t.Fatalf("wait b.test: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= delay {
		t.Fatalf("b.test waited %v behind a.test", elapsed)
	}
}

func TestHostPacerZeroDelayIsFree(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background(), "a.test", 0); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestHostPacerNilReceiverAndEmptyHost(t *testing.T) {
	t.Parallel()

	var p *HostPacer
	if err := p.Wait(context.Background(), "a.test", time.Second); err != nil {
		t.Fatalf("nil pacer: %v", err)
	}
	if err := NewHostPacer(config.RateLimitConfig{}).Wait(context.Background(), "", time.Second); err != nil {
		t.Fatalf("empty host: %v", err)
	}
}

func TestHostPacerCancelledContext(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{})
	if err := p.Wait(context.Background(), "a.test", time.Minute); err != nil {
		t.Fatalf("prime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx, "a.test", time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHostPacerFoldsHostCase(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{})
	if err := p.Wait(context.Background(), "A.Test", time.Minute); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// The lower-cased spelling must hit the same entry and block, so a
	// cancelled context surfaces instead of an instant return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, "a.test", time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHostPacerTokenBucket(t *testing.T) {
	t.Parallel()

	p := NewHostPacer(config.RateLimitConfig{
		Requests: 2,
		Window:   config.DurationFrom(time.Hour),
	})

	for i := 0; i < 2; i++ {
		if err := p.Wait(context.Background(), "a.test", 0); err != nil {
			t.Fatalf("burst wait %d: %v", i, err)
		}
	}

	// Burst spent; the next token is half an hour out, far past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, "a.test", 0); err == nil {
		t.Fatal("third request inside the window should not be admitted")
	}
}
