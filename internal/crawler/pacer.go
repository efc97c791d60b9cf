package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"subcrawler/internal/config"
)

// HostPacer spaces fetches to the same host. The delay between fetches is
// supplied per call because requests may override the configured crawl
// delay; an optional token bucket from configuration applies on top.
type HostPacer struct {
	rateCfg     config.RateLimitConfig
	rateEnabled bool

	mu       sync.Mutex
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewHostPacer creates a pacer with an optional per-host token bucket.
func NewHostPacer(rateCfg config.RateLimitConfig) *HostPacer {
	p := &HostPacer{
		last: make(map[string]time.Time),
	}
	if rateCfg.Enabled() {
		p.rateEnabled = true
		p.rateCfg = rateCfg
		p.limiters = make(map[string]*rate.Limiter)
	}
	return p
}

// Wait blocks until at least delay has passed since the previous fetch to
// host and the host's token bucket admits another request.
func (p *HostPacer) Wait(ctx context.Context, host string, delay time.Duration) error {
	if p == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	if delay <= 0 && !p.rateEnabled {
		return nil
	}

	var sleep time.Duration
	var limiter *rate.Limiter
	now := time.Now()

	p.mu.Lock()
	if delay > 0 {
		if last, ok := p.last[host]; ok {
			rest := last.Add(delay).Sub(now)
			if rest > 0 {
				sleep = rest
			}
		}
	}
	if p.rateEnabled {
		limiter = p.ensureLimiterLocked(host)
	}
	p.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last[host] = time.Now()
	p.mu.Unlock()
	return nil
}

func (p *HostPacer) ensureLimiterLocked(host string) *rate.Limiter {
	limiter, ok := p.limiters[host]
	if ok {
		return limiter
	}
	interval := p.rateCfg.Window.Duration / time.Duration(p.rateCfg.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter = rate.NewLimiter(rate.Every(interval), p.rateCfg.Requests)
	p.limiters[host] = limiter
	return limiter
}
