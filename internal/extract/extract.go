// Package extract pulls metadata, content renditions, and links out of fetch
// outcomes. Every function tries an ordered list of sources and returns the
// first that yields anything; a page with nothing extractable produces empty
// values, never an error.
package extract

import (
	"regexp"
	"strings"

	"subcrawler/internal/config"
	"subcrawler/pkg/types"
)

// ContentTypeAll requests every available rendition at once.
const ContentTypeAll = "all"

// altSuffix is the legacy key suffix some renderers use for renditions, e.g.
// "markdown_content" instead of "markdown".
const altSuffix = "_content"

// renditionOrder is the fallback order when a requested rendition is absent.
var renditionOrder = []string{config.FormatMarkdown, config.FormatHTML, config.FormatText}

// rendition resolves name against the outcome's content map, preferring the
// canonical key over its legacy "<name>_content" twin.
func rendition(o *types.FetchOutcome, name string) string {
	if v := o.Rendition(name); v != "" {
		return v
	}
	return o.Rendition(name + altSuffix)
}

var (
	leadingHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	hrefAttr       = regexp.MustCompile(`href=["']([^"']+)["']`)
	markdownLink   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
)

// Metadata returns the outcome's metadata map when it has entries, else a
// map holding just the title, recovered first from the outcome's title field
// and then from a leading markdown/html heading.
func Metadata(o *types.FetchOutcome) map[string]string {
	if o == nil {
		return map[string]string{}
	}
	if len(o.Metadata) > 0 {
		return o.Metadata
	}
	if o.Title != "" {
		return map[string]string{"title": o.Title}
	}
	for _, name := range []string{config.FormatMarkdown, config.FormatHTML} {
		if m := leadingHeading.FindStringSubmatch(rendition(o, name)); m != nil {
			return map[string]string{"title": strings.TrimSpace(m[1])}
		}
	}
	return map[string]string{}
}

// Content returns the requested rendition. For ContentTypeAll the payload
// maps every non-empty rendition by its canonical name; otherwise it carries
// the requested rendition, falling back through markdown, html, text, and
// finally "". Legacy "<name>_content" keys are honoured wherever the
// canonical key is empty.
func Content(o *types.FetchOutcome, requested string) types.ContentPayload {
	if requested == ContentTypeAll {
		all := make(map[string]string, len(renditionOrder))
		for _, name := range renditionOrder {
			if v := rendition(o, name); v != "" {
				all[name] = v
			}
		}
		if len(all) == 0 {
			return types.ContentPayload{}
		}
		return types.ContentPayload{Formats: all}
	}

	if v := rendition(o, requested); v != "" {
		return types.ContentPayload{Text: v}
	}
	for _, name := range renditionOrder {
		if v := rendition(o, name); v != "" {
			return types.ContentPayload{Text: v}
		}
	}
	return types.ContentPayload{}
}

// Links returns the outcome's link list. When the renderer supplied no
// structured links it recovers them from anchor hrefs in the html rendition,
// then from markdown link syntax. Only http(s) and root-relative targets
// survive; duplicates are dropped keeping first-seen order.
func Links(o *types.FetchOutcome) []string {
	if o == nil {
		return nil
	}
	if len(o.Links) > 0 {
		return dedupe(o.Links)
	}

	if html := rendition(o, config.FormatHTML); html != "" {
		var links []string
		for _, m := range hrefAttr.FindAllStringSubmatch(html, -1) {
			links = append(links, m[1])
		}
		if filtered := dedupe(links); len(filtered) > 0 {
			return filtered
		}
	}

	if md := rendition(o, config.FormatMarkdown); md != "" {
		var links []string
		for _, m := range markdownLink.FindAllStringSubmatch(md, -1) {
			links = append(links, m[2])
		}
		return dedupe(links)
	}
	return nil
}

func crawlable(link string) bool {
	return strings.HasPrefix(link, "http://") ||
		strings.HasPrefix(link, "https://") ||
		strings.HasPrefix(link, "/")
}

func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" || !crawlable(link) {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}
