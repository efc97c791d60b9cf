package crawler

import (
	"testing"
	"time"

	"subcrawler/internal/config"
	"subcrawler/pkg/types"
)

func TestBuildDeepResult(t *testing.T) {
	t.Parallel()

	opts := DeepCrawlOptions{
		Seed:     "https://a.test/",
		Depth:    3,
		MaxPages: 10,
		Strategy: config.StrategyBFS,
	}
	run := &crawlRun{
		discovered: []string{"https://a.test/p1", "https://a.test/p2"},
		metadata:   map[string]string{"title": "Seed"},
		fetched:    3,
	}

	res := buildDeepResult(opts, run, 1234*time.Millisecond)
	if res.TaskID == "" {
		t.Fatal("task id missing")
	}
	if res.URL != opts.Seed || res.Strategy != opts.Strategy ||
		res.CrawlDepth != opts.Depth || res.MaxPages != opts.MaxPages {
		t.Fatalf("request echo mismatch: %+v", res)
	}
	if res.URLsFound != 2 || len(res.SubURLs) != 2 {
		t.Fatalf("urls_found = %d, sub_urls = %v", res.URLsFound, res.SubURLs)
	}
	if !res.Success {
		t.Fatal("finished traversal should be success")
	}
	if res.ExecutionTimeSeconds != 1.23 {
		t.Fatalf("execution seconds = %v, want 1.23", res.ExecutionTimeSeconds)
	}
	if res.Metadata["title"] != "Seed" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestBuildDeepResultEmptyRun(t *testing.T) {
	t.Parallel()

	res := buildDeepResult(DeepCrawlOptions{Seed: "https://a.test/"}, &crawlRun{}, 0)
	if res.SubURLs == nil {
		t.Fatal("sub_urls should serialise as [], not null")
	}
	if res.Metadata == nil {
		t.Fatal("metadata should serialise as {}, not null")
	}
	if res.URLsFound != 0 {
		t.Fatalf("urls_found = %d, want 0", res.URLsFound)
	}
}

func TestBuildDeepResultDistinctTaskIDs(t *testing.T) {
	t.Parallel()

	opts := DeepCrawlOptions{Seed: "https://a.test/"}
	a := buildDeepResult(opts, &crawlRun{}, 0)
	b := buildDeepResult(opts, &crawlRun{}, 0)
	if a.TaskID == b.TaskID {
		t.Fatalf("task ids should be unique, both %q", a.TaskID)
	}
}

func TestBuildBatchResultSuccessIsConjunction(t *testing.T) {
	t.Parallel()

	allGood := buildBatchResult([]types.URLResult{
		{URL: "https://a.test/1", Success: true},
		{URL: "https://a.test/2", Success: true},
	}, time.Second)
	if !allGood.Success {
		t.Fatal("all items succeeded, batch should succeed")
	}

	oneBad := buildBatchResult([]types.URLResult{
		{URL: "https://a.test/1", Success: true},
		{URL: "https://a.test/2", Success: false, Error: "boom"},
	}, time.Second)
	if oneBad.Success {
		t.Fatal("one failed item should fail the batch flag")
	}
	if oneBad.URLsProcessed != 2 {
		t.Fatalf("urls_processed = %d, want 2", oneBad.URLsProcessed)
	}
	if len(oneBad.Results) != 2 {
		t.Fatalf("results = %d, want 2 (failures stay embedded)", len(oneBad.Results))
	}
}

func TestBuildBatchResultAverages(t *testing.T) {
	t.Parallel()

	res := buildBatchResult([]types.URLResult{
		{URL: "https://a.test/1", Success: true},
		{URL: "https://a.test/2", Success: true},
		{URL: "https://a.test/3", Success: true},
	}, 1*time.Second)
	if res.TotalExecutionTimeSeconds != 1.0 {
		t.Fatalf("total = %v, want 1.0", res.TotalExecutionTimeSeconds)
	}
	if res.AverageTimePerURL != 0.33 {
		t.Fatalf("average = %v, want 0.33", res.AverageTimePerURL)
	}
}

func TestBuildBatchResultEmpty(t *testing.T) {
	t.Parallel()

	res := buildBatchResult(nil, 500*time.Millisecond)
	if res.URLsProcessed != 0 {
		t.Fatalf("urls_processed = %d, want 0", res.URLsProcessed)
	}
	if res.AverageTimePerURL != 0 {
		t.Fatalf("average on empty batch = %v, want 0", res.AverageTimePerURL)
	}
	if !res.Success {
		t.Fatal("empty batch has nothing failed")
	}
}
