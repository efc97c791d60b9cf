package crawler

import (
	"net/url"
	"strings"
)

// ScoreFunc rates a discovered link for best_first ordering. Higher scores
// are fetched sooner. Implementations must be deterministic: the frontier
// breaks equal scores by discovery order, so equal inputs must keep equal
// scores across runs.
type ScoreFunc func(link *url.URL, parent Node) float64

// RelevanceScorer prefers shallow URLs and boosts links whose URL mentions
// one of the requested keywords. With no keywords it degrades to plain
// shallowest-first.
func RelevanceScorer(keywords []string) ScoreFunc {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return func(link *url.URL, _ Node) float64 {
		if link == nil {
			return 0
		}
		segments := 0
		for _, part := range strings.Split(link.EscapedPath(), "/") {
			if part != "" {
				segments++
			}
		}
		score := 1.0 / float64(1+segments)

		if len(lowered) > 0 {
			target := strings.ToLower(link.String())
			for _, kw := range lowered {
				if strings.Contains(target, kw) {
					score += 0.5
				}
			}
		}
		return score
	}
}
