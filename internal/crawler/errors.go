package crawler

import "errors"

var (
	// ErrInvalidURL marks a URL that cannot be normalised into an absolute
	// http(s) form. Invalid URLs are skipped during traversal and reported
	// per item in batch mode.
	ErrInvalidURL = errors.New("invalid url")

	// ErrRendererUnavailable means the shared browser could not be started.
	// Unlike per-page fetch failures this aborts the whole request.
	ErrRendererUnavailable = errors.New("renderer unavailable")

	// ErrUnknownStrategy marks an unsupported traversal strategy name.
	ErrUnknownStrategy = errors.New("unknown crawl strategy")

	// ErrBadPattern marks an exclusion pattern that does not compile.
	ErrBadPattern = errors.New("bad exclude pattern")
)
