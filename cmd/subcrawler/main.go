package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"subcrawler/internal/config"
	"subcrawler/internal/crawler"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "subcrawler: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to service configuration file")
	seed := flag.String("url", "", "Seed URL for a traversal crawl")
	list := flag.String("urls", "", "Comma-separated URL list for a batch crawl")
	depth := flag.Int("depth", 0, "Traversal depth limit (default from config)")
	maxPages := flag.Int("max-pages", 0, "Page budget for the traversal (default from config)")
	strategy := flag.String("strategy", "", "Traversal strategy: bfs, dfs or best_first (default from config)")
	keywords := flag.String("keywords", "", "Comma-separated relevance keywords for best_first scoring")
	exclude := flag.String("exclude", "", "Comma-separated extra URL exclusion patterns")
	contentType := flag.String("content-type", "", "Batch content rendition: markdown, html, text or all")
	outputFormat := flag.String("output-format", "", "Renderer output format: markdown, html or text (default from config)")
	concurrency := flag.Int("concurrency", 1, "Parallel fetches for a batch crawl")
	noRender := flag.Bool("no-render", false, "Fetch over plain HTTP without launching the browser")
	flag.Parse()

	if (*seed == "") == (*list == "") {
		return errors.New("exactly one of -url or -urls is required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := crawler.NewService(cfg)
	if err != nil {
		return fmt.Errorf("initialise crawl service: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetch := crawler.FetchOptions{
		Render:        cfg.Output.IncludeJSRendered && !*noRender,
		WaitForJS:     cfg.Output.WaitForJS,
		Timeout:       cfg.Output.JSTimeout.Duration,
		Delay:         cfg.Crawl.Delay.Duration,
		RespectRobots: cfg.Crawl.RespectRobotsTxt,
		OutputFormat:  orString(*outputFormat, cfg.Output.Format),
		Extraction:    cfg.Extraction,
	}
	if fetch.Render {
		if err := svc.Start(ctx); err != nil {
			return err
		}
	}

	var payload any
	if *seed != "" {
		payload, err = svc.CrawlSubURLs(ctx, crawler.DeepCrawlOptions{
			Seed:            *seed,
			Depth:           orInt(*depth, cfg.DeepCrawl.Depth),
			MaxPages:        orInt(*maxPages, cfg.DeepCrawl.MaxPages),
			Strategy:        orString(*strategy, cfg.DeepCrawl.Strategy),
			ExcludePatterns: splitList(*exclude),
			Keywords:        splitList(*keywords),
			Fetch:           fetch,
		})
	} else {
		payload, err = svc.CrawlURLs(ctx, crawler.BatchOptions{
			URLs:        splitList(*list),
			ContentType: orString(*contentType, cfg.Output.Format),
			Concurrency: *concurrency,
			Fetch:       fetch,
		})
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// loadConfig mirrors the API binary: an explicitly requested file must
// exist, the default location is optional.
func loadConfig(flagValue string) (*config.Config, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv("SUBCRAWLER_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			defaults := config.Default()
			return &defaults, nil
		}
		return nil, err
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
