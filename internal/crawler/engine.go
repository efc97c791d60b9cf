package crawler

import (
	"context"
	"fmt"

	"subcrawler/internal/extract"
	"subcrawler/internal/processor"
	"subcrawler/pkg/types"
)

// DeepCrawlOptions parameterise one traversal crawl. Every field is fully
// resolved: defaults from configuration are applied before the options reach
// the engine.
type DeepCrawlOptions struct {
	Seed            string
	Depth           int
	MaxPages        int
	Strategy        string
	ExcludePatterns []string
	Keywords        []string
	Fetch           FetchOptions
}

// crawlRun carries what a traversal produced before aggregation.
type crawlRun struct {
	discovered []string
	metadata   map[string]string
	outcomes   []*types.FetchOutcome
	fetched    int
	budgeted   bool
}

// runTraversal walks outward from the seed, breadth-, depth-, or best-first,
// until the frontier drains or the page budget is spent.
//
// Every URL is marked visited the moment it is pushed, so a page reachable
// through several branches is fetched exactly once. Skipping a node deeper
// than the depth limit costs nothing; every dispatched fetch, successful or
// not, counts against the page budget.
func (s *Service) runTraversal(ctx context.Context, opts DeepCrawlOptions, proc *processor.Processor) (*crawlRun, error) {
	seed, err := Normalize(opts.Seed, nil)
	if err != nil {
		return nil, err
	}
	rules, err := NewRuleSet(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	frontier, err := NewFrontier(opts.Strategy)
	if err != nil {
		return nil, err
	}
	score := RelevanceScorer(opts.Keywords)

	visited := NewVisited()
	visited.Add(seed)
	frontier.Push(Node{URL: seed, Depth: 0})

	run := &crawlRun{}
	for frontier.Len() > 0 {
		if run.fetched >= opts.MaxPages {
			run.budgeted = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("traversal aborted: %w", err)
		}

		node, ok := frontier.Pop()
		if !ok {
			break
		}
		if node.Depth > opts.Depth {
			continue
		}

		run.fetched++
		outcome := s.fetchPage(ctx, node.URL, opts.Fetch, proc)
		run.outcomes = append(run.outcomes, outcome)
		if !outcome.Success {
			s.logger.Warn("page fetch failed",
				"url", outcome.URL, "depth", node.Depth, "error", outcome.Error)
			continue
		}
		s.logger.Debug("page crawled",
			"url", outcome.URL, "depth", node.Depth, "links", len(outcome.Links))

		if run.metadata == nil {
			if md := extract.Metadata(outcome); len(md) > 0 {
				run.metadata = md
			}
		}
		if canonicalKey(node.URL) != canonicalKey(seed) {
			run.discovered = append(run.discovered, outcome.URL)
		}

		if node.Depth+1 > opts.Depth {
			continue
		}
		for _, link := range extract.Links(outcome) {
			child, err := Normalize(link, node.URL)
			if err != nil {
				continue
			}
			if visited.Seen(child) || rules.Excluded(child.String()) {
				continue
			}
			visited.Add(child)
			frontier.Push(Node{
				URL:   child,
				Depth: node.Depth + 1,
				Score: score(child, node),
			})
		}
	}
	return run, nil
}
