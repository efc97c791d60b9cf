package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"subcrawler/internal/config"
	"subcrawler/internal/fetcher"
	"subcrawler/internal/processor"
	robotsclient "subcrawler/internal/robots"
	"subcrawler/internal/storage"
	"subcrawler/pkg/types"
)

// rendererControl is the lifecycle surface of the shared browser.
type rendererControl interface {
	Start(ctx context.Context) error
	Ready() bool
	Close() error
}

// Archiver persists finished tasks to an external sink. Archive failures
// are logged and never fail the request that produced the task.
type Archiver interface {
	SaveDeep(ctx context.Context, res *types.DeepCrawlResult, pages []*types.FetchOutcome) error
	SaveBatch(ctx context.Context, res *types.BatchCrawlResult) error
	Close() error
}

// Service runs deep and batch crawls over one shared browser. It lives for
// the process; all crawl state (frontier, visited set, outcomes) lives for a
// single request.
type Service struct {
	logger   *slog.Logger
	fetcher  fetcher.Fetcher
	renderer rendererControl
	robots   *robotsclient.Agent
	pacer    *HostPacer
	archive  Archiver
}

// NewService wires the fetch stack, robots agent, pacer, and optional
// archive from configuration. The browser is not launched until Start.
func NewService(cfg *config.Config) (*Service, error) {
	logger, err := BuildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Browser.UserAgent,
		Timeout:      cfg.Crawl.Timeout.Duration,
		MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
	})
	renderer := fetcher.NewChromedpRenderer(fetcher.RenderOptions{
		Browser:        cfg.Browser,
		DefaultTimeout: cfg.Output.JSTimeout.Duration,
		MaxBodyBytes:   cfg.Crawl.MaxBodyBytes,
	}, logger)

	var archive Archiver
	if cfg.ArchiveEnabled() {
		store, err := storage.NewArchive(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		archive = store
	}

	return &Service{
		logger:   logger,
		fetcher:  fetcher.NewComposite(httpFetcher, renderer, logger),
		renderer: renderer,
		robots:   robotsclient.NewAgent(cfg.Browser.UserAgent, cfg.Crawl.RobotsCacheTTL.Duration, httpFetcher.Client()),
		pacer:    NewHostPacer(cfg.Crawl.RateLimitPerHost),
		archive:  archive,
	}, nil
}

// Logger exposes the service logger for the surrounding binary.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Start launches the shared browser. A failure here is not fatal to the
// process: the first request needing the renderer retries the launch.
func (s *Service) Start(ctx context.Context) error {
	return s.renderer.Start(ctx)
}

// Ready reports whether the shared browser is running.
func (s *Service) Ready() bool {
	return s.renderer.Ready()
}

// Close shuts down the browser and the archive.
func (s *Service) Close() error {
	err := s.renderer.Close()
	if s.archive != nil {
		err = errors.Join(err, s.archive.Close())
	}
	return err
}

func (s *Service) ensureRenderer(ctx context.Context) error {
	if s.renderer.Ready() {
		return nil
	}
	if err := s.renderer.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}
	return nil
}

// CrawlSubURLs runs a traversal crawl from the seed and aggregates the
// discovered sub-URLs. Only renderer unavailability and an invalid seed
// surface as errors; per-page failures are logged and skipped.
func (s *Service) CrawlSubURLs(ctx context.Context, opts DeepCrawlOptions) (*types.DeepCrawlResult, error) {
	start := time.Now()

	if opts.Fetch.Render {
		if err := s.ensureRenderer(ctx); err != nil {
			return nil, err
		}
	}

	// Traversal cannot work without link discovery, whatever the request says.
	ext := opts.Fetch.Extraction
	ext.ExtractLinks = true

	run, err := s.runTraversal(ctx, opts, processor.New(ext))
	if err != nil {
		return nil, err
	}

	res := buildDeepResult(opts, run, time.Since(start))
	s.logger.Info("deep crawl completed",
		"task_id", res.TaskID,
		"seed", opts.Seed,
		"strategy", opts.Strategy,
		"pages_fetched", run.fetched,
		"urls_found", res.URLsFound,
		"budget_stop", run.budgeted,
		"elapsed_s", res.ExecutionTimeSeconds,
	)

	if s.archive != nil {
		if err := s.archive.SaveDeep(ctx, res, run.outcomes); err != nil {
			s.logger.Error("archive deep crawl failed", "task_id", res.TaskID, "error", err)
		}
	}
	return res, nil
}

// CrawlURLs fetches an explicit URL list and returns per-URL results in
// input order. Individual failures are embedded; only renderer
// unavailability surfaces as an error.
func (s *Service) CrawlURLs(ctx context.Context, opts BatchOptions) (*types.BatchCrawlResult, error) {
	start := time.Now()

	if opts.Fetch.Render {
		if err := s.ensureRenderer(ctx); err != nil {
			return nil, err
		}
	}

	results := s.runBatch(ctx, opts, processor.New(opts.Fetch.Extraction))
	res := buildBatchResult(results, time.Since(start))
	s.logger.Info("batch crawl completed",
		"task_id", res.TaskID,
		"urls_processed", res.URLsProcessed,
		"success", res.Success,
		"elapsed_s", res.TotalExecutionTimeSeconds,
	)

	if s.archive != nil {
		if err := s.archive.SaveBatch(ctx, res); err != nil {
			s.logger.Error("archive batch crawl failed", "task_id", res.TaskID, "error", err)
		}
	}
	return res, nil
}

// BuildLogger translates logging configuration into an slog logger.
func BuildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	// Stderr keeps stdout free for command output when the service runs
	// under the CLI.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
