package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"subcrawler/internal/config"
	"subcrawler/pkg/types"
)

// Archive persists finished crawl tasks into a relational database. One row
// per task plus one row per fetched page, written after the response has
// been built so a slow or broken database never delays the caller's result.
type Archive struct {
	db *sql.DB
}

type taskRow struct {
	ID            string
	Kind          string
	SeedURL       string
	Strategy      string
	Depth         int
	MaxPages      int
	Success       bool
	URLsFound     int
	URLsProcessed int
	Seconds       float64
}

type pageRow struct {
	Position   int
	URL        string
	FinalURL   string
	Success    bool
	StatusCode int
	Title      string
	Error      string
	Seconds    float64
}

// NewArchive opens the archive database and prepares its schema.
func NewArchive(cfg config.ArchiveConfig) (*Archive, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("archive config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open archive connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	a := &Archive{db: db}
	if err := a.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// SaveDeep records a finished traversal crawl and its per-page outcomes.
func (a *Archive) SaveDeep(ctx context.Context, res *types.DeepCrawlResult, pages []*types.FetchOutcome) error {
	if res == nil {
		return errors.New("nil deep crawl result")
	}
	task := taskRow{
		ID:            res.TaskID,
		Kind:          "deep",
		SeedURL:       res.URL,
		Strategy:      res.Strategy,
		Depth:         res.CrawlDepth,
		MaxPages:      res.MaxPages,
		Success:       res.Success,
		URLsFound:     res.URLsFound,
		URLsProcessed: len(pages),
		Seconds:       res.ExecutionTimeSeconds,
	}
	rows := make([]pageRow, 0, len(pages))
	for i, p := range pages {
		if p == nil {
			continue
		}
		rows = append(rows, pageRow{
			Position:   i,
			URL:        p.URL,
			FinalURL:   p.FinalURL,
			Success:    p.Success,
			StatusCode: p.StatusCode,
			Title:      p.Title,
			Error:      p.Error,
			Seconds:    types.Seconds2(p.Elapsed),
		})
	}
	return a.saveTask(ctx, task, rows)
}

// SaveBatch records a finished batch crawl and its per-URL results.
func (a *Archive) SaveBatch(ctx context.Context, res *types.BatchCrawlResult) error {
	if res == nil {
		return errors.New("nil batch crawl result")
	}
	task := taskRow{
		ID:            res.TaskID,
		Kind:          "batch",
		Success:       res.Success,
		URLsProcessed: res.URLsProcessed,
		Seconds:       res.TotalExecutionTimeSeconds,
	}
	rows := make([]pageRow, 0, len(res.Results))
	for i, r := range res.Results {
		rows = append(rows, pageRow{
			Position: i,
			URL:      r.URL,
			Success:  r.Success,
			Title:    r.Metadata["title"],
			Error:    r.Error,
			Seconds:  r.ExecutionTimeSeconds,
		})
	}
	return a.saveTask(ctx, task, rows)
}

// Close closes the underlying DB connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) saveTask(ctx context.Context, task taskRow, rows []pageRow) error {
	if a == nil || a.db == nil {
		return nil
	}
	if err := a.insertTask(ctx, task, rows); err != nil {
		if isUndefinedTableErr(err) {
			if schemaErr := a.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := a.insertTask(ctx, task, rows); retryErr != nil {
				return fmt.Errorf("insert task: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (a *Archive) insertTask(ctx context.Context, task taskRow, rows []pageRow) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	taskStmt := `
        INSERT INTO crawl_tasks
            (task_id, kind, seed_url, strategy, crawl_depth, max_pages,
             success, urls_found, urls_processed, execution_seconds)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `
	if _, err := tx.ExecContext(ctx, taskStmt,
		task.ID,
		task.Kind,
		task.SeedURL,
		task.Strategy,
		task.Depth,
		task.MaxPages,
		task.Success,
		task.URLsFound,
		task.URLsProcessed,
		task.Seconds,
	); err != nil {
		return err
	}

	pageStmt := `
        INSERT INTO crawl_pages
            (task_id, position, url, final_url, success, status_code,
             title, error, execution_seconds)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, pageStmt,
			task.ID,
			row.Position,
			row.URL,
			row.FinalURL,
			row.Success,
			row.StatusCode,
			row.Title,
			row.Error,
			row.Seconds,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	if a == nil || a.db == nil {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS crawl_tasks (
		    task_id UUID PRIMARY KEY,
		    kind TEXT NOT NULL,
		    seed_url TEXT,
		    strategy TEXT,
		    crawl_depth INT,
		    max_pages INT,
		    success BOOLEAN NOT NULL,
		    urls_found INT,
		    urls_processed INT,
		    execution_seconds DOUBLE PRECISION,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_pages (
		    task_id UUID NOT NULL REFERENCES crawl_tasks (task_id) ON DELETE CASCADE,
		    position INT NOT NULL,
		    url TEXT NOT NULL,
		    final_url TEXT,
		    success BOOLEAN NOT NULL,
		    status_code INT,
		    title TEXT,
		    error TEXT,
		    execution_seconds DOUBLE PRECISION,
		    PRIMARY KEY (task_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_tasks_created_at ON crawl_tasks (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
