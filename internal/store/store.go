// Package store persists scraped datasets and enrichment task history.
package store

import (
	"context"
	"time"

	"github.com/playmaker-hq/teamscout/internal/model"
)

// Dataset is one scraper's stored team data.
type Dataset struct {
	ScraperID string          `json:"scraper_id"`
	Teams     []model.TeamRow `json:"teams"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

// DatasetInfo is the listing view of a stored dataset.
type DatasetInfo struct {
	ScraperID  string    `json:"scraper_id"`
	TeamsCount int       `json:"teams_count"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// TaskRecord is the persisted summary of a finished enrichment task. Live
// task state stays in the orchestrator; the store keeps the durable history.
type TaskRecord struct {
	ID            string     `json:"id"`
	ScraperID     string     `json:"scraper_id"`
	Enrichers     []string   `json:"enrichers"`
	Status        string     `json:"status"`
	TeamsTotal    int        `json:"teams_total"`
	TeamsEnriched int        `json:"teams_enriched"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Store defines the persistence interface.
type Store interface {
	// Datasets. SaveDataset replaces the scraper's previous dataset.
	SaveDataset(ctx context.Context, scraperID string, teams []model.TeamRow, scrapedAt time.Time) error
	LoadDataset(ctx context.Context, scraperID string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)

	// Task history.
	SaveTask(ctx context.Context, rec TaskRecord) error
	GetTask(ctx context.Context, id string) (*TaskRecord, error)
	ListTasks(ctx context.Context, limit int) ([]TaskRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
