package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"subcrawler/internal/config"
	"subcrawler/internal/fetcher"
	"subcrawler/pkg/types"
)

// holdFirstFetcher blocks the held URL until every other URL has been
// fetched, so completion order differs from input order.
type holdFirstFetcher struct {
	pages map[string]string
	hold  string

	mu   sync.Mutex
	rest int
	gate chan struct{}
	done []string
}

func (f *holdFirstFetcher) Fetch(ctx context.Context, req fetcher.Request) (*types.Page, error) {
	key := req.URL.String()
	if key == f.hold {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		f.mu.Lock()
		if f.rest--; f.rest == 0 {
			close(f.gate)
		}
		f.mu.Unlock()
	}

	body, ok := f.pages[key]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", key)
	}
	f.mu.Lock()
	f.done = append(f.done, key)
	f.mu.Unlock()
	return &types.Page{
		URL:        req.URL,
		FinalURL:   req.URL,
		HTML:       []byte(body),
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now(),
	}, nil
}

func TestCrawlURLsPreservesInputOrder(t *testing.T) {
	t.Parallel()

	urls := []string{"https://a.test/one", "https://a.test/two", "https://a.test/three"}
	fx := &holdFirstFetcher{
		pages: map[string]string{
			urls[0]: htmlPage("One"),
			urls[1]: htmlPage("Two"),
			urls[2]: htmlPage("Three"),
		},
		hold: urls[0],
		rest: 2,
		gate: make(chan struct{}),
	}
	svc := newTestService(fx)

	res, err := svc.CrawlURLs(context.Background(), BatchOptions{
		URLs:        urls,
		ContentType: config.FormatText,
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if last := fx.done[len(fx.done)-1]; last != urls[0] {
		t.Fatalf("gate did not engage, last completion was %s", last)
	}
	if len(res.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(res.Results))
	}
	for i, want := range []string{"One", "Two", "Three"} {
		r := res.Results[i]
		if r.URL != urls[i] {
			t.Fatalf("result %d is %s, want %s", i, r.URL, urls[i])
		}
		if !r.Success || r.Metadata["title"] != want {
			t.Fatalf("result %d = %+v, want title %q", i, r, want)
		}
	}
	if !res.Success || res.URLsProcessed != 3 {
		t.Fatalf("batch = success %v processed %d", res.Success, res.URLsProcessed)
	}
}

func TestCrawlURLsEmbedsInvalidURL(t *testing.T) {
	t.Parallel()

	fx := &pageFetcher{pages: map[string]string{
		"https://a.test/ok": htmlPage("OK"),
	}}
	svc := newTestService(fx)

	res, err := svc.CrawlURLs(context.Background(), BatchOptions{
		URLs:        []string{"https://a.test/ok", "not-a-url"},
		ContentType: config.FormatText,
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if !res.Results[0].Success {
		t.Fatalf("valid url failed: %+v", res.Results[0])
	}
	bad := res.Results[1]
	if bad.Success || bad.Error == "" {
		t.Fatalf("invalid url result = %+v", bad)
	}
	if bad.URL != "not-a-url" {
		t.Fatalf("failed result echoes %q, want the raw input", bad.URL)
	}
	if bad.Metadata == nil {
		t.Fatal("failed result metadata should serialise as {}, not null")
	}
	if res.Success {
		t.Fatal("one failed item should fail the batch flag")
	}
	if res.URLsProcessed != 2 {
		t.Fatalf("urls_processed = %d, want 2", res.URLsProcessed)
	}
}

func TestCrawlURLsEmbedsFetchFailure(t *testing.T) {
	t.Parallel()

	fx := &pageFetcher{
		pages: map[string]string{"https://a.test/ok": htmlPage("OK")},
		fail:  map[string]error{"https://a.test/down": fmt.Errorf("gateway timeout")},
	}
	svc := newTestService(fx)

	res, err := svc.CrawlURLs(context.Background(), BatchOptions{
		URLs:        []string{"https://a.test/down", "https://a.test/ok"},
		ContentType: config.FormatText,
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	down := res.Results[0]
	if down.Success || !strings.Contains(down.Error, "gateway timeout") {
		t.Fatalf("failed fetch result = %+v", down)
	}
	if !res.Results[1].Success {
		t.Fatalf("healthy url dragged down: %+v", res.Results[1])
	}
	if res.Success {
		t.Fatal("batch flag should be false")
	}
}

func TestCrawlURLsContentRenditions(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>Guide</title></head><body><h1>Guide</h1><p>Welcome text.</p></body></html>`
	newService := func() *Service {
		return newTestService(&pageFetcher{pages: map[string]string{
			"https://a.test/guide": page,
		}})
	}
	crawl := func(t *testing.T, contentType string) types.URLResult {
		t.Helper()
		res, err := newService().CrawlURLs(context.Background(), BatchOptions{
			URLs:        []string{"https://a.test/guide"},
			ContentType: contentType,
		})
		if err != nil {
			t.Fatalf("crawl: %v", err)
		}
		return res.Results[0]
	}

	t.Run("all returns every rendition", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, "all").Content
		if got.Text != "" {
			t.Fatalf("all should not fill the single rendition, got %q", got.Text)
		}
		for _, format := range []string{config.FormatMarkdown, config.FormatHTML, config.FormatText} {
			if got.Formats[format] == "" {
				t.Fatalf("rendition %q missing: %v", format, got.Formats)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, config.FormatMarkdown).Content
		if got.Formats != nil {
			t.Fatalf("single rendition should not fill formats: %v", got.Formats)
		}
		if !strings.HasPrefix(got.Text, "# Guide") {
			t.Fatalf("markdown = %q", got.Text)
		}
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, config.FormatText).Content
		if !strings.Contains(got.Text, "Welcome text.") || strings.Contains(got.Text, "#") {
			t.Fatalf("text = %q", got.Text)
		}
	})
}

func TestCrawlURLsOutputFormatLimitsRenditions(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>Guide</title></head><body><h1>Guide</h1><p>Welcome text.</p></body></html>`
	crawl := func(t *testing.T, outputFormat, contentType string) types.URLResult {
		t.Helper()
		svc := newTestService(&pageFetcher{pages: map[string]string{
			"https://a.test/guide": page,
		}})
		res, err := svc.CrawlURLs(context.Background(), BatchOptions{
			URLs:        []string{"https://a.test/guide"},
			ContentType: contentType,
			Fetch:       FetchOptions{OutputFormat: outputFormat},
		})
		if err != nil {
			t.Fatalf("crawl: %v", err)
		}
		return res.Results[0]
	}

	t.Run("text format produces only the bare rendition", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, config.FormatText, "all").Content
		if len(got.Formats) != 1 || got.Formats[config.FormatText] == "" {
			t.Fatalf("formats = %v, want text only", got.Formats)
		}
	})

	t.Run("html format skips markdown generation", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, config.FormatHTML, "all").Content
		if _, ok := got.Formats[config.FormatMarkdown]; ok {
			t.Fatalf("markdown should not be generated: %v", got.Formats)
		}
		if got.Formats[config.FormatHTML] == "" || got.Formats[config.FormatText] == "" {
			t.Fatalf("formats = %v, want html and text", got.Formats)
		}
	})

	t.Run("absent rendition falls back", func(t *testing.T) {
		t.Parallel()
		got := crawl(t, config.FormatText, config.FormatMarkdown).Content
		if !strings.Contains(got.Text, "Welcome text.") || strings.Contains(got.Text, "#") {
			t.Fatalf("markdown request against a text-only page = %q", got.Text)
		}
	})
}

func TestCrawlURLsEmptyInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(&pageFetcher{})
	res, err := svc.CrawlURLs(context.Background(), BatchOptions{
		URLs:        []string{},
		ContentType: config.FormatText,
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if !res.Success {
		t.Fatal("empty batch is vacuously successful")
	}
	if res.Results == nil || len(res.Results) != 0 {
		t.Fatalf("results = %#v, want an empty list", res.Results)
	}
	if res.URLsProcessed != 0 || res.AverageTimePerURL != 0 {
		t.Fatalf("processed = %d avg = %v, want zeros", res.URLsProcessed, res.AverageTimePerURL)
	}
}

func TestCrawlURLsAppliesCrawlDelay(t *testing.T) {
	t.Parallel()

	fx := &pageFetcher{pages: map[string]string{
		"https://a.test/one": htmlPage("One"),
		"https://a.test/two": htmlPage("Two"),
	}}
	svc := newTestService(fx)
	delay := 40 * time.Millisecond

	start := time.Now()
	res, err := svc.CrawlURLs(context.Background(), BatchOptions{
		URLs:        []string{"https://a.test/one", "https://a.test/two"},
		ContentType: config.FormatText,
		Fetch:       FetchOptions{Delay: delay},
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("same-host fetches %v apart, want at least %v", elapsed, delay)
	}
}
