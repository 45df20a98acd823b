package model

import "time"

// EnrichmentResult is the outcome of one enricher invocation over a batch.
// Per-item failures do not flip Success; only run-level failures (setup,
// teardown, unavailability) do.
type EnrichmentResult struct {
	Success        bool           `json:"success"`
	EnricherName   string         `json:"enricher_name"`
	TeamsProcessed int            `json:"teams_processed"`
	TeamsEnriched  int            `json:"teams_enriched"`
	DurationMS     int64          `json:"duration_ms"`
	Timestamp      time.Time      `json:"timestamp"`
	Error          string         `json:"error,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// ScrapeResult is the outcome of one scraper run.
type ScrapeResult struct {
	Success      bool           `json:"success"`
	TeamsCount   int            `json:"teams_count"`
	DurationMS   int64          `json:"duration_ms"`
	Timestamp    time.Time      `json:"timestamp"`
	JSONPath     string         `json:"json_path,omitempty"`
	XLSXPath     string         `json:"xlsx_path,omitempty"`
	Error        string         `json:"error,omitempty"`
	UsedFallback bool           `json:"used_fallback,omitempty"`
	Breakdown    map[string]int `json:"breakdown,omitempty"` // per-league team counts
}
