package types

import (
	"encoding/json"
	"math"
	"net/url"
	"time"
)

// Page represents one fetched and possibly JavaScript-rendered document.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	HTML            []byte
	ContentType     string
	StatusCode      int
	FetchedAt       time.Time
	Rendered        bool
	ResponseLatency time.Duration
}

// FetchOutcome is the result of fetching plus extracting a single URL.
// Fetch failures never surface as errors; they are carried in Success/Error
// so a traversal can skip the node and keep going.
type FetchOutcome struct {
	URL        string
	FinalURL   string
	Success    bool
	Error      string
	StatusCode int
	Rendered   bool
	Title      string
	Metadata   map[string]string
	Content    map[string]string
	Links      []string
	Images     []string
	Elapsed    time.Duration
}

// Rendition returns the named content rendition, or "" when absent.
func (o *FetchOutcome) Rendition(name string) string {
	if o == nil || o.Content == nil {
		return ""
	}
	return o.Content[name]
}

// ContentPayload carries page content for one URL. It serialises as a plain
// string for a single rendition and as an object keyed by rendition name when
// every format was requested.
type ContentPayload struct {
	Text    string
	Formats map[string]string
}

func (c ContentPayload) MarshalJSON() ([]byte, error) {
	if c.Formats != nil {
		return json.Marshal(c.Formats)
	}
	return json.Marshal(c.Text)
}

func (c *ContentPayload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Text = s
		c.Formats = nil
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.Formats = m
	c.Text = ""
	return nil
}

// DeepCrawlResult aggregates a traversal crawl started from a single seed.
type DeepCrawlResult struct {
	TaskID               string            `json:"task_id"`
	URL                  string            `json:"url"`
	SubURLs              []string          `json:"sub_urls"`
	Metadata             map[string]string `json:"metadata"`
	Success              bool              `json:"success"`
	ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
	URLsFound            int               `json:"urls_found"`
	CrawlDepth           int               `json:"crawl_depth"`
	MaxPages             int               `json:"max_pages"`
	Strategy             string            `json:"strategy"`
}

// URLResult is the per-URL entry of a batch crawl, in input order.
type URLResult struct {
	URL                  string            `json:"url"`
	Metadata             map[string]string `json:"metadata"`
	Content              ContentPayload    `json:"content"`
	Success              bool              `json:"success"`
	ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
	Error                string            `json:"error,omitempty"`
}

// BatchCrawlResult aggregates a batch crawl over an explicit URL list.
type BatchCrawlResult struct {
	TaskID                    string      `json:"task_id"`
	Results                   []URLResult `json:"results"`
	Success                   bool        `json:"success"`
	TotalExecutionTimeSeconds float64     `json:"total_execution_time_seconds"`
	URLsProcessed             int         `json:"urls_processed"`
	AverageTimePerURL         float64     `json:"average_time_per_url"`
}

// Seconds2 converts a duration to seconds rounded to two decimals, the
// resolution every execution time in the API is reported at.
func Seconds2(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
