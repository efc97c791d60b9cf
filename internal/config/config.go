package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted for deep crawls.
const (
	StrategyBFS       = "bfs"
	StrategyDFS       = "dfs"
	StrategyBestFirst = "best_first"
)

// Output rendition names.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

// Config captures the full configuration required to run the crawl service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Browser    BrowserConfig    `yaml:"browser"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Output     OutputConfig     `yaml:"output"`
	DeepCrawl  DeepCrawlConfig  `yaml:"deep_crawl"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP listener and request admission.
type ServerConfig struct {
	Addr                string   `yaml:"addr"`
	ReadHeaderTimeout   Duration `yaml:"read_header_timeout"`
	ShutdownTimeout     Duration `yaml:"shutdown_timeout"`
	MaxConcurrentCrawls int      `yaml:"max_concurrent_crawls"`
}

// BrowserConfig describes the shared headless browser used for rendering.
type BrowserConfig struct {
	Headless             bool   `yaml:"headless"`
	ViewportWidth        int    `yaml:"viewport_width"`
	ViewportHeight       int    `yaml:"viewport_height"`
	UserAgent            string `yaml:"user_agent"`
	UserDataDir          string `yaml:"user_data_dir"`
	UsePersistentContext bool   `yaml:"use_persistent_context"`
	Verbose              bool   `yaml:"verbose"`
	ConcurrentSessions   int    `yaml:"concurrent_sessions"`
}

// CrawlConfig controls politeness and fetch limits shared by all requests.
type CrawlConfig struct {
	Delay            Duration        `yaml:"delay"`
	RespectRobotsTxt bool            `yaml:"respect_robots_txt"`
	Timeout          Duration        `yaml:"timeout"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes"`
	RobotsCacheTTL   Duration        `yaml:"robots_cache_ttl"`
	RateLimitPerHost RateLimitConfig `yaml:"rate_limit_per_host"`
}

// RateLimitConfig applies a token bucket per host on top of the crawl delay.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// ExtractionConfig selects what gets pulled out of each rendered page.
type ExtractionConfig struct {
	ExtractLinks   bool     `yaml:"extract_links"`
	ExtractImages  bool     `yaml:"extract_images"`
	MetadataFields []string `yaml:"metadata_fields"`
}

// OutputConfig sets default rendition and JavaScript wait behaviour.
type OutputConfig struct {
	Format            string   `yaml:"format"`
	WaitForJS         bool     `yaml:"wait_for_js"`
	JSTimeout         Duration `yaml:"js_timeout"`
	IncludeJSRendered bool     `yaml:"include_js_rendered"`
}

// DeepCrawlConfig holds per-request defaults for traversal crawls.
type DeepCrawlConfig struct {
	Depth    int    `yaml:"depth"`
	MaxPages int    `yaml:"max_pages"`
	Strategy string `yaml:"strategy"`
}

// ArchiveConfig describes an optional relational sink for completed tasks.
// The archive is disabled unless both driver and dsn are set.
type ArchiveConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with the service defaults.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Server: ServerConfig{
			Addr:                ":8080",
			ReadHeaderTimeout:   DurationFrom(5 * time.Second),
			ShutdownTimeout:     DurationFrom(15 * time.Second),
			MaxConcurrentCrawls: 8,
		},
		Browser: BrowserConfig{
			Headless:             true,
			ViewportWidth:        1920,
			ViewportHeight:       1080,
			UserDataDir:          filepath.Join(home, ".subcrawler", "browser_profile"),
			UsePersistentContext: true,
			Verbose:              false,
			ConcurrentSessions:   2,
		},
		Crawl: CrawlConfig{
			Delay:            DurationFrom(1 * time.Second),
			RespectRobotsTxt: true,
			Timeout:          DurationFrom(60 * time.Second),
			MaxBodyBytes:     6 * 1024 * 1024,
			RobotsCacheTTL:   DurationFrom(6 * time.Hour),
		},
		Extraction: ExtractionConfig{
			ExtractLinks:   true,
			ExtractImages:  true,
			MetadataFields: []string{"title", "description", "keywords"},
		},
		Output: OutputConfig{
			Format:            FormatMarkdown,
			WaitForJS:         true,
			JSTimeout:         DurationFrom(8 * time.Second),
			IncludeJSRendered: true,
		},
		DeepCrawl: DeepCrawlConfig{
			Depth:    5,
			MaxPages: 10,
			Strategy: StrategyBestFirst,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	cfg := Default()
	if err := decodeYAML(fh, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the service configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.MaxConcurrentCrawls <= 0 {
		return fmt.Errorf("server.max_concurrent_crawls must be > 0 (got %d)", c.Server.MaxConcurrentCrawls)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive (got %dx%d)", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.ConcurrentSessions <= 0 {
		return fmt.Errorf("browser.concurrent_sessions must be > 0 (got %d)", c.Browser.ConcurrentSessions)
	}
	if c.Crawl.Timeout.IsZero() {
		return errors.New("crawl.timeout must be set")
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be > 0 (got %d)", c.Crawl.MaxBodyBytes)
	}
	if rl := c.Crawl.RateLimitPerHost; rl.Requests < 0 {
		return fmt.Errorf("crawl.rate_limit_per_host.requests must be >= 0 (got %d)", rl.Requests)
	}
	switch c.Output.Format {
	case FormatMarkdown, FormatHTML, FormatText:
	default:
		return fmt.Errorf("output.format must be markdown, html, or text (got %q)", c.Output.Format)
	}
	if c.Output.JSTimeout.IsZero() {
		return errors.New("output.js_timeout must be set")
	}
	if c.DeepCrawl.Depth < 1 || c.DeepCrawl.Depth > 5 {
		return fmt.Errorf("deep_crawl.depth must be between 1 and 5 (got %d)", c.DeepCrawl.Depth)
	}
	if c.DeepCrawl.MaxPages < 1 || c.DeepCrawl.MaxPages > 100 {
		return fmt.Errorf("deep_crawl.max_pages must be between 1 and 100 (got %d)", c.DeepCrawl.MaxPages)
	}
	switch c.DeepCrawl.Strategy {
	case StrategyBFS, StrategyDFS, StrategyBestFirst:
	default:
		return fmt.Errorf("deep_crawl.strategy must be bfs, dfs, or best_first (got %q)", c.DeepCrawl.Strategy)
	}
	if (c.Archive.Driver == "") != (c.Archive.DSN == "") {
		return errors.New("archive.driver and archive.dsn must be set together")
	}
	return nil
}

func (c *Config) normalise() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)
	c.Browser.UserDataDir = strings.TrimSpace(c.Browser.UserDataDir)
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.DeepCrawl.Strategy = strings.ToLower(strings.TrimSpace(c.DeepCrawl.Strategy))
	c.Archive.Driver = strings.TrimSpace(c.Archive.Driver)
	c.Archive.DSN = strings.TrimSpace(c.Archive.DSN)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if len(c.Extraction.MetadataFields) > 0 {
		c.Extraction.MetadataFields = dedupeLower(c.Extraction.MetadataFields)
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// ArchiveEnabled reports whether completed tasks should be persisted.
func (c Config) ArchiveEnabled() bool {
	return c.Archive.Driver != "" && c.Archive.DSN != ""
}
