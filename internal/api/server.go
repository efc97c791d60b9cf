package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"subcrawler/internal/config"
	"subcrawler/internal/crawler"
	"subcrawler/pkg/types"
)

const (
	serviceName    = "subcrawler"
	serviceVersion = "1.0.0"
)

// ErrMaxConcurrency signals that the crawl admission limit has been reached.
var ErrMaxConcurrency = errors.New("maximum concurrent crawls reached")

// CrawlService runs the crawls behind the HTTP surface.
type CrawlService interface {
	CrawlSubURLs(ctx context.Context, opts crawler.DeepCrawlOptions) (*types.DeepCrawlResult, error)
	CrawlURLs(ctx context.Context, opts crawler.BatchOptions) (*types.BatchCrawlResult, error)
	Ready() bool
}

// Server exposes the crawl service over JSON HTTP.
type Server struct {
	cfg      *config.Config
	service  CrawlService
	logger   *slog.Logger
	mux      *http.ServeMux
	validate *validator.Validate
	crawls   *admission
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(cfg *config.Config, service CrawlService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		service:  service,
		logger:   logger,
		mux:      http.NewServeMux(),
		validate: newValidator(),
		crawls:   newAdmission(cfg.Server.MaxConcurrentCrawls),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Crawl routes answer both bare and under the /api/v1 prefix so older
// clients keep working.
func (s *Server) routes() {
	for _, prefix := range []string{"", "/api/v1"} {
		s.mux.HandleFunc(prefix+"/crawl-suburls", s.handleCrawlSubURLs)
		s.mux.HandleFunc(prefix+"/crawl-urls", s.handleCrawlURLs)
		s.mux.HandleFunc(prefix+"/health", s.handleHealth)
		s.mux.HandleFunc(prefix+"/config", s.handleConfig)
	}
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)
	s.mux.HandleFunc("/docs", s.handleDocs)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, ServiceInfo{
		Service: serviceName,
		Version: serviceVersion,
		Status:  "running",
		Docs:    "/docs",
		Health:  "/api/v1/health",
		Config:  "/api/v1/config",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Timestamp:    float64(time.Now().UnixNano()) / float64(time.Second),
		CrawlerReady: s.service.Ready(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, configResponse(s.cfg))
}

func (s *Server) handleCrawlSubURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CrawlSubURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json payload: %v", err))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	if err := s.crawls.acquire(); err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	defer s.crawls.release()

	res, err := s.service.CrawlSubURLs(r.Context(), req.Options(s.cfg))
	if err != nil {
		s.logger.Error("crawl-suburls failed", "url", req.URL, "error", err)
		writeError(w, crawlErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCrawlURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CrawlURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json payload: %v", err))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	if err := s.crawls.acquire(); err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	defer s.crawls.release()

	res, err := s.service.CrawlURLs(r.Context(), req.Options(s.cfg))
	if err != nil {
		s.logger.Error("crawl-urls failed", "urls", len(req.URLs), "error", err)
		writeError(w, crawlErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// crawlErrorStatus maps request defects to 400; everything else that escapes
// the per-item error embedding is a service fault.
func crawlErrorStatus(err error) int {
	switch {
	case errors.Is(err, crawler.ErrInvalidURL),
		errors.Is(err, crawler.ErrUnknownStrategy),
		errors.Is(err, crawler.ErrBadPattern):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// newValidator reports violations under the wire field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationDetail(err error) string {
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err.Error()
	}
	parts := make([]string, 0, len(violations))
	for _, fe := range violations {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// admission caps the number of crawls running at once. Excess requests are
// rejected, not queued, so callers get immediate backpressure.
type admission struct {
	mu      sync.Mutex
	running int
	limit   int
}

func newAdmission(limit int) *admission {
	if limit <= 0 {
		limit = 1
	}
	return &admission{limit: limit}
}

func (a *admission) acquire() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running >= a.limit {
		return fmt.Errorf("%w (limit %d)", ErrMaxConcurrency, a.limit)
	}
	a.running++
	return nil
}

func (a *admission) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running > 0 {
		a.running--
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
