package crawler

import (
	"math"
	"time"

	"github.com/google/uuid"

	"subcrawler/pkg/types"
)

// buildDeepResult folds a finished traversal into the response shape.
// Both terminal states, frontier drained and page budget spent, are success.
func buildDeepResult(opts DeepCrawlOptions, run *crawlRun, elapsed time.Duration) *types.DeepCrawlResult {
	metadata := run.metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	subURLs := run.discovered
	if subURLs == nil {
		subURLs = []string{}
	}
	return &types.DeepCrawlResult{
		TaskID:               uuid.NewString(),
		URL:                  opts.Seed,
		SubURLs:              subURLs,
		Metadata:             metadata,
		Success:              true,
		ExecutionTimeSeconds: types.Seconds2(elapsed),
		URLsFound:            len(subURLs),
		CrawlDepth:           opts.Depth,
		MaxPages:             opts.MaxPages,
		Strategy:             opts.Strategy,
	}
}

// buildBatchResult folds per-URL results into the response shape. Overall
// success is the AND across items; the average guards the empty batch.
func buildBatchResult(results []types.URLResult, elapsed time.Duration) *types.BatchCrawlResult {
	success := true
	for i := range results {
		success = success && results[i].Success
	}

	total := types.Seconds2(elapsed)
	avg := 0.0
	if n := len(results); n > 0 {
		avg = math.Round(total/float64(n)*100) / 100
	}
	return &types.BatchCrawlResult{
		TaskID:                    uuid.NewString(),
		Results:                   results,
		Success:                   success,
		TotalExecutionTimeSeconds: total,
		URLsProcessed:             len(results),
		AverageTimePerURL:         avg,
	}
}
