package api

import (
	"subcrawler/internal/config"
	"subcrawler/internal/crawler"
)

// CrawlSubURLsRequest is the payload for a traversal crawl. Optional fields
// fall back to the configured defaults when absent.
type CrawlSubURLsRequest struct {
	URL             string   `json:"url" validate:"required,url"`
	Depth           *int     `json:"depth,omitempty" validate:"omitempty,min=1,max=5"`
	MaxPages        *int     `json:"max_pages,omitempty" validate:"omitempty,min=1,max=100"`
	Strategy        *string  `json:"strategy,omitempty" validate:"omitempty,oneof=bfs dfs best_first"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	ExtractLinks    *bool    `json:"extract_links,omitempty"`
	ExtractImages   *bool    `json:"extract_images,omitempty"`
	OutputFormat    *string  `json:"output_format,omitempty" validate:"omitempty,oneof=markdown html text"`
	WaitForJS       *bool    `json:"wait_for_js,omitempty"`
	JSTimeout       *int     `json:"js_timeout,omitempty" validate:"omitempty,min=1000,max=60000"`
	CrawlDelay      *float64 `json:"crawl_delay,omitempty" validate:"omitempty,min=0.1,max=10"`
}

// CrawlURLsRequest is the payload for a batch crawl over an explicit list.
// Entries are not validated here; a malformed URL becomes an embedded
// per-item failure in the result rather than a rejected request.
type CrawlURLsRequest struct {
	URLs          []string `json:"urls" validate:"required"`
	ExtractLinks  *bool    `json:"extract_links,omitempty"`
	ExtractImages *bool    `json:"extract_images,omitempty"`
	OutputFormat  *string  `json:"output_format,omitempty" validate:"omitempty,oneof=markdown html text"`
	ContentType   *string  `json:"content_type,omitempty" validate:"omitempty,oneof=markdown html text all"`
	WaitForJS     *bool    `json:"wait_for_js,omitempty"`
	JSTimeout     *int     `json:"js_timeout,omitempty" validate:"omitempty,min=1000,max=60000"`
	CrawlDelay    *float64 `json:"crawl_delay,omitempty" validate:"omitempty,min=0.1,max=10"`
}

// HealthResponse reports service liveness and browser readiness.
type HealthResponse struct {
	Status       string  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
	CrawlerReady bool    `json:"crawler_ready"`
}

// ServiceInfo is the root document describing the running service.
type ServiceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Docs    string `json:"docs"`
	Health  string `json:"health"`
	Config  string `json:"config"`
}

// ConfigResponse exposes the effective configuration grouped by concern.
type ConfigResponse struct {
	Browser    BrowserSettings    `json:"browser"`
	Crawling   CrawlSettings      `json:"crawling"`
	Extraction ExtractionSettings `json:"extraction"`
	Output     OutputSettings     `json:"output"`
}

// BrowserSettings mirrors the browser section of the configuration.
type BrowserSettings struct {
	Headless             bool   `json:"headless"`
	ViewportWidth        int    `json:"viewport_width"`
	ViewportHeight       int    `json:"viewport_height"`
	UserAgent            string `json:"user_agent"`
	Verbose              bool   `json:"verbose"`
	UsePersistentContext bool   `json:"use_persistent_context"`
}

// CrawlSettings mirrors crawl politeness and limits.
type CrawlSettings struct {
	DelaySeconds     float64 `json:"delay"`
	RespectRobotsTxt bool    `json:"respect_robots_txt"`
	TimeoutSeconds   float64 `json:"timeout"`
}

// ExtractionSettings mirrors what gets pulled out of each page.
type ExtractionSettings struct {
	ExtractLinks   bool     `json:"extract_links"`
	ExtractImages  bool     `json:"extract_images"`
	MetadataFields []string `json:"metadata_fields"`
}

// OutputSettings mirrors rendition and JavaScript wait behaviour.
type OutputSettings struct {
	Format            string `json:"format"`
	WaitForJS         bool   `json:"wait_for_js"`
	JSTimeoutMillis   int64  `json:"js_timeout"`
	IncludeJSRendered bool   `json:"include_js_rendered"`
}

func configResponse(cfg *config.Config) ConfigResponse {
	fields := cfg.Extraction.MetadataFields
	if fields == nil {
		fields = []string{}
	}
	return ConfigResponse{
		Browser: BrowserSettings{
			Headless:             cfg.Browser.Headless,
			ViewportWidth:        cfg.Browser.ViewportWidth,
			ViewportHeight:       cfg.Browser.ViewportHeight,
			UserAgent:            cfg.Browser.UserAgent,
			Verbose:              cfg.Browser.Verbose,
			UsePersistentContext: cfg.Browser.UsePersistentContext,
		},
		Crawling: CrawlSettings{
			DelaySeconds:     cfg.Crawl.Delay.Seconds(),
			RespectRobotsTxt: cfg.Crawl.RespectRobotsTxt,
			TimeoutSeconds:   cfg.Crawl.Timeout.Seconds(),
		},
		Extraction: ExtractionSettings{
			ExtractLinks:   cfg.Extraction.ExtractLinks,
			ExtractImages:  cfg.Extraction.ExtractImages,
			MetadataFields: fields,
		},
		Output: OutputSettings{
			Format:            cfg.Output.Format,
			WaitForJS:         cfg.Output.WaitForJS,
			JSTimeoutMillis:   cfg.Output.JSTimeout.Milliseconds(),
			IncludeJSRendered: cfg.Output.IncludeJSRendered,
		},
	}
}

// Options resolves the request against configured defaults into engine
// options. Absent fields take the configuration value, present fields win.
func (r *CrawlSubURLsRequest) Options(cfg *config.Config) crawler.DeepCrawlOptions {
	return crawler.DeepCrawlOptions{
		Seed:            r.URL,
		Depth:           orDefault(r.Depth, cfg.DeepCrawl.Depth),
		MaxPages:        orDefault(r.MaxPages, cfg.DeepCrawl.MaxPages),
		Strategy:        orDefault(r.Strategy, cfg.DeepCrawl.Strategy),
		ExcludePatterns: r.ExcludePatterns,
		Keywords:        r.Keywords,
		Fetch:           fetchOptions(cfg, r.ExtractLinks, r.ExtractImages, r.OutputFormat, r.WaitForJS, r.JSTimeout, r.CrawlDelay),
	}
}

// Options resolves the batch request the same way.
func (r *CrawlURLsRequest) Options(cfg *config.Config) crawler.BatchOptions {
	return crawler.BatchOptions{
		URLs:        r.URLs,
		ContentType: orDefault(r.ContentType, cfg.Output.Format),
		Fetch:       fetchOptions(cfg, r.ExtractLinks, r.ExtractImages, r.OutputFormat, r.WaitForJS, r.JSTimeout, r.CrawlDelay),
	}
}

func fetchOptions(cfg *config.Config, extractLinks, extractImages *bool, outputFormat *string, waitForJS *bool, jsTimeout *int, crawlDelay *float64) crawler.FetchOptions {
	timeout := cfg.Output.JSTimeout
	if jsTimeout != nil {
		timeout = config.DurationFromMillis(*jsTimeout)
	}
	delay := cfg.Crawl.Delay
	if crawlDelay != nil {
		delay = config.DurationFromSeconds(*crawlDelay)
	}
	return crawler.FetchOptions{
		Render:        cfg.Output.IncludeJSRendered,
		WaitForJS:     orDefault(waitForJS, cfg.Output.WaitForJS),
		Timeout:       timeout.Duration,
		Delay:         delay.Duration,
		RespectRobots: cfg.Crawl.RespectRobotsTxt,
		OutputFormat:  orDefault(outputFormat, cfg.Output.Format),
		Extraction: config.ExtractionConfig{
			ExtractLinks:   orDefault(extractLinks, cfg.Extraction.ExtractLinks),
			ExtractImages:  orDefault(extractImages, cfg.Extraction.ExtractImages),
			MetadataFields: cfg.Extraction.MetadataFields,
		},
	}
}

func orDefault[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}
