package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"subcrawler/internal/config"
	"subcrawler/pkg/types"
)

// ErrRendererNotStarted is returned by Render when no browser is running.
var ErrRendererNotStarted = errors.New("renderer not started")

// RenderOptions configures the shared browser and per-render defaults.
type RenderOptions struct {
	Browser        config.BrowserConfig
	DefaultTimeout time.Duration
	MaxBodyBytes   int64
}

// ChromedpRenderer drives one long-lived headless Chrome process. The browser
// is started once, shared by every request, and each Render opens a fresh tab.
type ChromedpRenderer struct {
	opts     RenderOptions
	logger   *slog.Logger
	sessions *semaphore.Weighted

	mu            sync.Mutex
	started       bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpRenderer constructs a renderer with bounded tab concurrency.
// The browser is not launched until Start is called.
func NewChromedpRenderer(opts RenderOptions, logger *slog.Logger) *ChromedpRenderer {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}
	if opts.Browser.ConcurrentSessions <= 0 {
		opts.Browser.ConcurrentSessions = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromedpRenderer{
		opts:     opts,
		logger:   logger,
		sessions: semaphore.NewWeighted(int64(opts.Browser.ConcurrentSessions)),
	}
}

// Start launches the shared browser process. Calling Start on a running
// renderer is a no-op.
func (r *ChromedpRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	browser := r.opts.Browser
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(browser.ViewportWidth, browser.ViewportHeight),
		chromedp.UserAgent(selectUserAgent(browser.UserAgent)),
	}
	if browser.UsePersistentContext && browser.UserDataDir != "" {
		if err := os.MkdirAll(browser.UserDataDir, 0o755); err != nil {
			return fmt.Errorf("create browser profile dir: %w", err)
		}
		execOpts = append(execOpts, chromedp.UserDataDir(browser.UserDataDir))
	}

	ctxOpts := []chromedp.ContextOption{}
	if browser.Verbose {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}))
	}

	// The allocator outlives any request context; shutdown goes through Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.started = true
	r.logger.Info("browser started",
		"headless", browser.Headless,
		"viewport", fmt.Sprintf("%dx%d", browser.ViewportWidth, browser.ViewportHeight),
		"persistent_profile", browser.UsePersistentContext && browser.UserDataDir != "",
	)
	return nil
}

// Ready reports whether the shared browser is running.
func (r *ChromedpRenderer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Close shuts the shared browser down.
func (r *ChromedpRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	err := chromedp.Cancel(r.browserCtx)
	r.browserCancel()
	r.allocCancel()
	r.started = false
	r.logger.Info("browser shut down")
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// Render opens a tab in the shared browser, navigates, optionally waits for
// the document to finish loading scripts, and captures the final DOM.
func (r *ChromedpRenderer) Render(ctx context.Context, req Request) (*types.Page, error) {
	if req.URL == nil {
		return nil, errors.New("render request URL is nil")
	}

	r.mu.Lock()
	browserCtx, started := r.browserCtx, r.started
	r.mu.Unlock()
	if !started {
		return nil, ErrRendererNotStarted
	}

	if err := r.sessions.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sessions.Release(1)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	actions := []chromedp.Action{
		chromedp.Navigate(req.URL.String()),
	}
	if req.WaitForJS {
		actions = append(actions,
			waitForDocumentReady(),
			chromedp.Sleep(250*time.Millisecond),
		)
	}
	var html, finalURL string
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	if int64(len(html)) > r.opts.MaxBodyBytes {
		html = html[:r.opts.MaxBodyBytes]
	}

	parsedFinal := req.URL
	if finalURL != "" {
		if u, err := url.Parse(finalURL); err == nil {
			parsedFinal = u
		}
	}

	latency := time.Since(start)
	r.logger.Debug("render complete",
		"url", req.URL.String(),
		"final_url", parsedFinal.String(),
		"latency_ms", latency.Milliseconds(),
		"html_bytes", len(html),
	)
	return &types.Page{
		URL:             req.URL,
		FinalURL:        parsedFinal,
		HTML:            []byte(html),
		ContentType:     "text/html; charset=utf-8",
		StatusCode:      200,
		FetchedAt:       time.Now(),
		Rendered:        true,
		ResponseLatency: latency,
	}, nil
}

func selectUserAgent(base string) string {
	if strings.TrimSpace(base) != "" {
		return base
	}
	return "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"
}

// waitForDocumentReady polls document.readyState until scripts have finished.
func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
