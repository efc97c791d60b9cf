package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Visited remembers the canonical form of every URL a traversal has pushed.
// Marking happens at push time so a URL discovered twice before either copy
// is fetched still enters the frontier exactly once. A Visited set lives for
// a single request.
type Visited struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewVisited returns an empty set.
func NewVisited() *Visited {
	return &Visited{keys: make(map[string]struct{})}
}

// Add marks the URL and reports whether it was newly added.
func (v *Visited) Add(u *url.URL) bool {
	key := canonicalKey(u)
	if key == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, seen := v.keys[key]; seen {
		return false
	}
	v.keys[key] = struct{}{}
	return true
}

// Seen reports whether the URL was already marked.
func (v *Visited) Seen(u *url.URL) bool {
	key := canonicalKey(u)
	if key == "" {
		return false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, seen := v.keys[key]
	return seen
}

// Len returns the number of marked URLs.
func (v *Visited) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// canonicalKey folds equivalent URL spellings onto one key: lowercase scheme
// and host, default ports dropped, empty paths read as "/".
func canonicalKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if port := u.Port(); port != "" && port != defaultPortForScheme(scheme) {
		host = host + ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := scheme + "://" + host + path
	if q := u.RawQuery; q != "" {
		key += "?" + q
	}
	return key
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}
