package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"subcrawler/internal/config"
	"subcrawler/internal/fetcher"
	"subcrawler/internal/processor"
	"subcrawler/pkg/types"
)

// FetchOptions are the per-request knobs applied to every page fetch.
type FetchOptions struct {
	Render        bool
	WaitForJS     bool
	Timeout       time.Duration
	Delay         time.Duration
	RespectRobots bool
	OutputFormat  string
	Extraction    config.ExtractionConfig
}

// fetchPage retrieves and processes one URL. It never returns an error:
// robots blocks, timeouts, transport failures, and bad statuses all come
// back as a failed outcome so traversals and batches can keep going.
func (s *Service) fetchPage(ctx context.Context, u *url.URL, opts FetchOptions, proc *processor.Processor) *types.FetchOutcome {
	outcome := &types.FetchOutcome{URL: u.String()}
	start := time.Now()
	defer func() {
		outcome.Elapsed = time.Since(start)
	}()

	if opts.RespectRobots && !s.robots.Allowed(ctx, u) {
		outcome.Error = "blocked by robots.txt"
		return outcome
	}

	if err := s.pacer.Wait(ctx, u.Hostname(), opts.Delay); err != nil {
		outcome.Error = fmt.Sprintf("politeness wait interrupted: %v", err)
		return outcome
	}

	page, err := s.fetcher.Fetch(ctx, fetcher.Request{
		URL:       u,
		Render:    opts.Render,
		WaitForJS: opts.WaitForJS,
		Timeout:   opts.Timeout,
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.FinalURL = page.FinalURL.String()
	outcome.StatusCode = page.StatusCode
	outcome.Rendered = page.Rendered
	if page.StatusCode >= 400 {
		outcome.Error = fmt.Sprintf("http status %d", page.StatusCode)
		return outcome
	}

	doc, err := proc.Process(page)
	if err != nil {
		outcome.Error = fmt.Sprintf("process page: %v", err)
		return outcome
	}

	outcome.Success = true
	outcome.Title = doc.Title
	outcome.Metadata = doc.Metadata
	outcome.Links = doc.Links
	outcome.Images = doc.Images
	outcome.Content = renditions(opts.OutputFormat, doc)
	return outcome
}

// renditions selects the outcome content for the requested output format.
// "text" keeps only the plain-text rendition and "html" skips markdown
// generation; markdown (the default) keeps every rendition.
func renditions(format string, doc *processor.Document) map[string]string {
	content := make(map[string]string, 3)
	put := func(name, v string) {
		if v != "" {
			content[name] = v
		}
	}
	switch format {
	case config.FormatText:
		put(config.FormatText, doc.Text)
	case config.FormatHTML:
		put(config.FormatHTML, doc.HTML)
		put(config.FormatText, doc.Text)
	default:
		put(config.FormatMarkdown, doc.Markdown)
		put(config.FormatHTML, doc.HTML)
		put(config.FormatText, doc.Text)
	}
	return content
}
