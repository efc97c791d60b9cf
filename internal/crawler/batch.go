package crawler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"subcrawler/internal/extract"
	"subcrawler/internal/processor"
	"subcrawler/pkg/types"
)

// BatchOptions parameterise a crawl over an explicit URL list.
type BatchOptions struct {
	URLs        []string
	ContentType string
	Concurrency int
	Fetch       FetchOptions
}

// runBatch crawls every URL and returns results in input order. Failures,
// including unparseable URLs, are embedded per item; the batch itself never
// fails. Concurrency above 1 fans fetches out over a bounded group while the
// index-addressed results slice keeps ordering intact.
func (s *Service) runBatch(ctx context.Context, opts BatchOptions, proc *processor.Processor) []types.URLResult {
	results := make([]types.URLResult, len(opts.URLs))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, raw := range opts.URLs {
		i, raw := i, raw
		g.Go(func() error {
			results[i] = s.crawlOne(gctx, raw, opts, proc)
			return nil
		})
	}
	// Workers never return errors; per-URL failures live in the results.
	_ = g.Wait()
	return results
}

func (s *Service) crawlOne(ctx context.Context, raw string, opts BatchOptions, proc *processor.Processor) types.URLResult {
	start := time.Now()

	u, err := Normalize(raw, nil)
	if err != nil {
		s.logger.Warn("batch url rejected", "url", raw, "error", err)
		return types.URLResult{
			URL:                  raw,
			Metadata:             map[string]string{},
			Success:              false,
			ExecutionTimeSeconds: types.Seconds2(time.Since(start)),
			Error:                err.Error(),
		}
	}

	outcome := s.fetchPage(ctx, u, opts.Fetch, proc)
	if !outcome.Success {
		s.logger.Warn("batch url failed", "url", raw, "error", outcome.Error)
		return types.URLResult{
			URL:                  raw,
			Metadata:             map[string]string{},
			Success:              false,
			ExecutionTimeSeconds: types.Seconds2(time.Since(start)),
			Error:                outcome.Error,
		}
	}

	return types.URLResult{
		URL:                  raw,
		Metadata:             extract.Metadata(outcome),
		Content:              extract.Content(outcome, opts.ContentType),
		Success:              true,
		ExecutionTimeSeconds: types.Seconds2(time.Since(start)),
	}
}
