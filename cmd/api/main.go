package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subcrawler/internal/api"
	"subcrawler/internal/config"
	"subcrawler/internal/crawler"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	cfgPath := flag.String("config", "", "Path to service configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if listen := resolveAddr(*addr); listen != "" {
		cfg.Server.Addr = listen
	}

	svc, err := crawler.NewService(cfg)
	if err != nil {
		log.Fatalf("failed to initialise crawl service: %v", err)
	}
	logger := svc.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A browser that fails to launch here is retried on the first crawl, so
	// the API can come up and report crawler_ready=false in the meantime.
	if err := svc.Start(ctx); err != nil {
		logger.Error("browser startup failed", "error", err)
	}

	server := api.NewServer(cfg, svc, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout := cfg.Server.ShutdownTimeout.Duration
		if shutdownTimeout <= 0 {
			shutdownTimeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("service shutdown error", "error", err)
		}
	}()

	logger.Info("api server listening",
		"addr", cfg.Server.Addr,
		"max_concurrent_crawls", cfg.Server.MaxConcurrentCrawls,
		"archive", cfg.ArchiveEnabled(),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("API server stopped")
}

// loadConfig resolves the configuration path from the flag, then the
// environment, then the default location. Only an explicitly requested file
// is required to exist; the built-in defaults cover the rest.
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

func resolveAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("SUBCRAWLER_ADDR")
}
