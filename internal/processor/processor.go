package processor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"subcrawler/internal/config"
	"subcrawler/pkg/types"
)

// Document holds everything extracted from one rendered page: the metadata
// fields, discovered links and images, and the three content renditions.
type Document struct {
	Title    string
	Metadata map[string]string
	Links    []string
	Images   []string
	HTML     string
	Markdown string
	Text     string
}

// Processor turns raw page HTML into a Document. It is stateless and safe
// for concurrent use.
type Processor struct {
	extractLinks  bool
	extractImages bool
	fields        map[string]struct{}
}

// New constructs a Processor from the extraction configuration.
func New(cfg config.ExtractionConfig) *Processor {
	p := &Processor{
		extractLinks:  cfg.ExtractLinks,
		extractImages: cfg.ExtractImages,
	}
	if len(cfg.MetadataFields) > 0 {
		p.fields = make(map[string]struct{}, len(cfg.MetadataFields))
		for _, f := range cfg.MetadataFields {
			p.fields[strings.ToLower(f)] = struct{}{}
		}
	}
	return p
}

// Process parses the page body and derives metadata, links, and renditions.
// An empty body yields an empty Document rather than an error: a page with
// nothing extractable is still a successfully crawled page.
func (p *Processor) Process(page *types.Page) (*Document, error) {
	if page == nil {
		return nil, fmt.Errorf("page is nil")
	}
	if len(page.HTML) == 0 {
		return &Document{Metadata: map[string]string{}}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &Document{
		Title:    normalizeWhitespace(doc.Find("title").First().Text()),
		Metadata: p.collectMetadata(doc),
	}

	base := page.FinalURL
	if base == nil {
		base = page.URL
	}
	if p.extractLinks {
		out.Links = collectRefs(doc, "a[href]", "href", base)
	}
	if p.extractImages {
		out.Images = collectRefs(doc, "img[src]", "src", base)
	}

	doc.Find("script,noscript,style,iframe,link[rel='stylesheet']").Remove()

	htmlStr, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serialise html: %w", err)
	}
	out.HTML = strings.TrimSpace(htmlStr)

	out.Markdown, out.Text, err = p.renderFrom(out.HTML)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// metaSelectors maps canonical metadata field names to the places a value
// may live, in preference order.
var metaSelectors = map[string][]string{
	"description": {"meta[name='description']", "meta[property='og:description']"},
	"keywords":    {"meta[name='keywords']"},
	"author":      {"meta[name='author']"},
}

func (p *Processor) collectMetadata(doc *goquery.Document) map[string]string {
	md := make(map[string]string)

	set := func(field, value string) {
		value = normalizeWhitespace(value)
		if value == "" {
			return
		}
		if p.fields != nil {
			if _, ok := p.fields[field]; !ok {
				return
			}
		}
		if _, exists := md[field]; !exists {
			md[field] = value
		}
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
	}
	set("title", title)

	for field, selectors := range metaSelectors {
		for _, sel := range selectors {
			if content, ok := doc.Find(sel).First().Attr("content"); ok {
				set(field, content)
				break
			}
		}
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		set("language", lang)
	}
	return md
}

// collectRefs resolves every matched attribute against the page base and
// returns absolute http(s) URLs, deduplicated in document order.
func collectRefs(doc *goquery.Document, selector, attr string, base *url.URL) []string {
	seen := make(map[string]struct{})
	var refs []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr(attr)
		if !ok {
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		abs := ref.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		refs = append(refs, abs)
	})
	return refs
}

// renderFrom walks the cleaned HTML once per rendition.
func (p *Processor) renderFrom(cleanHTML string) (markdown, text string, err error) {
	root, err := html.Parse(strings.NewReader(cleanHTML))
	if err != nil {
		return "", "", fmt.Errorf("parse processed html: %w", err)
	}
	content := contentRoot(root)

	mw := &mdWriter{images: p.extractImages}
	for child := content.FirstChild; child != nil; child = child.NextSibling {
		mw.node(child)
	}
	markdown = collapseBlankLines(strings.TrimSpace(mw.String()))

	tw := &textWriter{}
	for child := content.FirstChild; child != nil; child = child.NextSibling {
		tw.node(child)
	}
	text = collapseBlankLines(strings.TrimSpace(tw.String()))
	return markdown, text, nil
}

func contentRoot(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	if body := firstElement(node, "body"); body != nil {
		return body
	}
	if doc := firstElement(node, "html"); doc != nil {
		return doc
	}
	return node
}

func firstElement(node *html.Node, tag string) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.ElementNode && strings.EqualFold(node.Data, tag) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := firstElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

var blockTags = map[string]struct{}{
	"p":          {},
	"div":        {},
	"section":    {},
	"article":    {},
	"header":     {},
	"footer":     {},
	"main":       {},
	"aside":      {},
	"nav":        {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"ul":         {},
	"ol":         {},
	"li":         {},
	"table":      {},
	"tr":         {},
	"blockquote": {},
	"pre":        {},
	"figure":     {},
	"figcaption": {},
}

// textWriter renders plain text: inline runs joined by single spaces,
// block elements separated by newlines.
type textWriter struct {
	b       strings.Builder
	last    rune
	hasLast bool
}

func (t *textWriter) String() string { return t.b.String() }

func (t *textWriter) write(s string) {
	if s == "" {
		return
	}
	t.b.WriteString(s)
	for _, r := range s {
		t.last = r
		t.hasLast = true
	}
}

func (t *textWriter) space() {
	if !t.hasLast || t.last == ' ' || t.last == '\n' {
		return
	}
	t.write(" ")
}

func (t *textWriter) newline() {
	if !t.hasLast || t.last == '\n' {
		return
	}
	t.write("\n")
}

func (t *textWriter) node(n *html.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		text := normalizeWhitespace(n.Data)
		if text == "" {
			return
		}
		t.space()
		t.write(text)
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if tag == "br" {
			t.newline()
			return
		}
		_, block := blockTags[tag]
		if block {
			t.newline()
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			t.node(child)
		}
		switch tag {
		case "td", "th":
			t.space()
		default:
			if block {
				t.newline()
			}
		}
	}
}

type listLevel struct {
	ordered bool
	index   int
}

// mdWriter renders GitHub-flavoured markdown from an HTML subtree.
type mdWriter struct {
	b          strings.Builder
	last       rune
	hasLast    bool
	trailingNL int
	lists      []listLevel
	inCode     bool
	images     bool
}

func (m *mdWriter) String() string { return m.b.String() }

func (m *mdWriter) write(s string) {
	if s == "" {
		return
	}
	m.b.WriteString(s)
	for _, r := range s {
		m.last = r
		m.hasLast = true
		if r == '\n' {
			m.trailingNL++
		} else {
			m.trailingNL = 0
		}
	}
}

func (m *mdWriter) space() {
	if !m.hasLast || m.trailingNL > 0 || m.last == ' ' {
		return
	}
	m.write(" ")
}

func (m *mdWriter) lineBreak() {
	if m.trailingNL >= 1 {
		return
	}
	m.write("\n")
}

func (m *mdWriter) blankLine() {
	for m.hasLast && m.trailingNL < 2 {
		m.write("\n")
	}
}

func (m *mdWriter) children(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		m.node(child)
	}
}

func (m *mdWriter) node(n *html.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		text := normalizeWhitespace(n.Data)
		if text == "" {
			return
		}
		if m.inCode {
			m.write(n.Data)
			return
		}
		m.space()
		m.write(text)
	case html.ElementNode:
		m.element(n)
	}
}

func (m *mdWriter) element(n *html.Node) {
	tag := strings.ToLower(n.Data)
	switch tag {
	case "br":
		m.write("  \n")
	case "hr":
		m.blankLine()
		m.write("---")
		m.blankLine()
	case "p", "div", "section", "article", "header", "footer", "main", "aside", "nav", "blockquote", "figure", "figcaption":
		m.blankLine()
		m.children(n)
		m.blankLine()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		m.blankLine()
		m.write(strings.Repeat("#", level) + " ")
		m.children(n)
		m.blankLine()
	case "strong", "b":
		m.write("**")
		m.children(n)
		m.write("**")
	case "em", "i":
		m.write("_")
		m.children(n)
		m.write("_")
	case "code":
		if m.inCode {
			m.children(n)
			return
		}
		text := normalizeWhitespace(textContent(n))
		if text != "" {
			m.write("`" + text + "`")
		}
	case "pre":
		m.blankLine()
		m.write("```\n")
		m.inCode = true
		m.children(n)
		m.inCode = false
		m.lineBreak()
		m.write("```")
		m.blankLine()
	case "a":
		href := attrValue(n, "href")
		text := normalizeWhitespace(textContent(n))
		if text == "" {
			text = href
		}
		if text == "" {
			return
		}
		m.space()
		if href == "" {
			m.write(text)
		} else {
			m.write("[" + text + "](" + href + ")")
		}
	case "img":
		if !m.images {
			return
		}
		src := attrValue(n, "src")
		if src == "" {
			return
		}
		m.space()
		m.write("![" + attrValue(n, "alt") + "](" + src + ")")
	case "ul", "ol":
		m.lists = append(m.lists, listLevel{ordered: tag == "ol"})
		m.blankLine()
		m.children(n)
		m.lists = m.lists[:len(m.lists)-1]
		m.blankLine()
	case "li":
		if len(m.lists) == 0 {
			m.lists = append(m.lists, listLevel{})
			defer func() { m.lists = m.lists[:len(m.lists)-1] }()
		}
		level := &m.lists[len(m.lists)-1]
		level.index++
		m.lineBreak()
		indent := strings.Repeat("  ", len(m.lists)-1)
		if level.ordered {
			m.write(fmt.Sprintf("%s%d. ", indent, level.index))
		} else {
			m.write(indent + "- ")
		}
		m.children(n)
		m.lineBreak()
	case "table":
		m.blankLine()
		if md := m.table(n); md != "" {
			m.write(md)
			m.lineBreak()
		}
		m.blankLine()
	default:
		m.children(n)
	}
}

type tableRow struct {
	cells  []string
	header bool
}

func (m *mdWriter) table(table *html.Node) string {
	rows := tableRows(table)
	if len(rows) == 0 {
		return ""
	}
	headerIdx := 0
	for i, row := range rows {
		if row.header {
			headerIdx = i
			break
		}
	}

	cols := len(rows[headerIdx].cells)
	if cols == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[headerIdx].cells)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for i, row := range rows {
		if i == headerIdx {
			continue
		}
		writeRow(row.cells)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableRows(node *html.Node) []tableRow {
	var rows []tableRow
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, header bool) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(child.Data) {
			case "thead":
				walk(child, true)
			case "tbody", "tfoot":
				walk(child, header)
			case "tr":
				row := tableRow{header: header}
				for cell := child.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}
					tag := strings.ToLower(cell.Data)
					if tag != "td" && tag != "th" {
						continue
					}
					if tag == "th" {
						row.header = true
					}
					row.cells = append(row.cells, normalizeWhitespace(textContent(cell)))
				}
				if len(row.cells) > 0 {
					rows = append(rows, row)
				}
			default:
				walk(child, header)
			}
		}
	}
	walk(node, false)
	return rows
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			result = append(result, "")
			continue
		}
		blank = 0
		result = append(result, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textContent(node *html.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := normalizeWhitespace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
		case html.ElementNode:
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				walk(child)
			}
		}
	}
	walk(node)
	return b.String()
}

func attrValue(node *html.Node, attr string) string {
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, attr) {
			return a.Val
		}
	}
	return ""
}
