package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// defaultExcludePatterns drop auth flows, account areas, commerce funnels,
// boilerplate pages, and binary downloads from every traversal.
var defaultExcludePatterns = []string{
	`.*login.*`,
	`.*signup.*`,
	`.*register.*`,
	`.*sign-in.*`,
	`.*sign-up.*`,
	`.*auth.*`,
	`.*password.*`,
	`.*reset.*`,
	`.*logout.*`,
	`.*admin.*`,
	`.*dashboard.*`,
	`.*profile.*`,
	`.*account.*`,
	`.*checkout.*`,
	`.*cart.*`,
	`.*payment.*`,
	`.*billing.*`,
	`.*subscribe.*`,
	`.*newsletter.*`,
	`.*contact.*`,
	`.*support.*`,
	`.*help.*`,
	`.*faq.*`,
	`.*sitemap.*`,
	`.*robots.*`,
	`.*\.(pdf|doc|docx|xls|xlsx|ppt|pptx|zip|rar|exe|dmg)$`,
}

// RuleSet decides which discovered URLs a traversal may enqueue.
type RuleSet struct {
	exclude []*regexp.Regexp
}

// NewRuleSet compiles the built-in exclusion patterns plus any extra
// request-supplied ones. Patterns match case-insensitively against the full
// URL; any match excludes.
func NewRuleSet(extra []string) (*RuleSet, error) {
	patterns := make([]string, 0, len(defaultExcludePatterns)+len(extra))
	patterns = append(patterns, defaultExcludePatterns...)
	patterns = append(patterns, extra...)

	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	return &RuleSet{exclude: compiled}, nil
}

// Excluded reports whether the URL matches any exclusion pattern.
func (r *RuleSet) Excluded(u string) bool {
	for _, pat := range r.exclude {
		if pat.MatchString(u) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrBadPattern, raw, err)
		}
		compiled = append(compiled, pat)
	}
	return compiled, nil
}

// Normalize resolves raw against base (when given), strips fragments, and
// lowercases the scheme and host. It returns ErrInvalidURL unless the result
// is an absolute http(s) URL.
func Normalize(raw string, base *url.URL) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host %q", ErrInvalidURL, raw)
	}
	return u, nil
}
