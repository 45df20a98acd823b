// Package task tracks enrichment task lifecycle: creation, progress,
// completion, cancellation, subscriber fan-out, and bounded history.
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/playmaker-hq/teamscout/internal/diff"
	"github.com/playmaker-hq/teamscout/internal/model"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EnricherProgress is the live progress record for one enricher within a
// task. Enrichers run sequentially, so at most one record is running at a
// time.
type EnricherProgress struct {
	EnricherID     string     `json:"enricher_id"`
	Status         Status     `json:"status"`
	TeamsProcessed int        `json:"teams_processed"`
	TeamsEnriched  int        `json:"teams_enriched"`
	TeamsTotal     int        `json:"teams_total"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Task is one enrichment task over a scraped dataset.
type Task struct {
	ID          string   `json:"id"`
	ScraperID   string   `json:"scraper_id"`
	ScraperName string   `json:"scraper_name,omitempty"`
	EnricherIDs []string `json:"enrichers"`
	Status      Status   `json:"status"`
	Error       string   `json:"error,omitempty"`

	// Progress holds one sub-record per requested enricher, in request
	// order.
	Progress []*EnricherProgress `json:"progress"`

	// Results accumulates the per-enricher run results as they complete.
	Results []*model.EnrichmentResult `json:"results,omitempty"`

	TeamsTotal    int `json:"teams_total"`
	TeamsEnriched int `json:"teams_enriched"` // sum across enrichers

	// Diff is populated only when the task completes.
	Diff *diff.Diff `json:"diff,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// before is the dataset snapshot taken when the task started, keyed by
	// normalized team name. It feeds the diff after completion and is not
	// serialized with the task.
	before map[string]map[string]any
}

// newTask builds a pending task for the given dataset and enricher IDs.
func newTask(scraperID, scraperName string, enricherIDs []string, teamsTotal int) *Task {
	progress := make([]*EnricherProgress, len(enricherIDs))
	for i, id := range enricherIDs {
		progress[i] = &EnricherProgress{
			EnricherID: id,
			Status:     StatusPending,
			TeamsTotal: teamsTotal,
		}
	}
	return &Task{
		ID:          uuid.NewString(),
		ScraperID:   scraperID,
		ScraperName: scraperName,
		EnricherIDs: append([]string(nil), enricherIDs...),
		Status:      StatusPending,
		Progress:    progress,
		TeamsTotal:  teamsTotal,
		CreatedAt:   time.Now().UTC(),
	}
}

// Clone returns a deep copy safe to hand to subscribers and HTTP handlers
// while the original keeps mutating under the orchestrator's lock. The
// before-snapshot is shared: it is written once at start and read-only after.
func (t *Task) Clone() *Task {
	c := *t
	c.EnricherIDs = append([]string(nil), t.EnricherIDs...)
	c.Progress = make([]*EnricherProgress, len(t.Progress))
	for i, p := range t.Progress {
		cp := *p
		c.Progress[i] = &cp
	}
	c.Results = append([]*model.EnrichmentResult(nil), t.Results...)
	return &c
}

// BeforeSnapshot returns the dataset snapshot captured at task start, or nil
// if the task has not started.
func (t *Task) BeforeSnapshot() map[string]map[string]any {
	return t.before
}

// recomputeAggregate refreshes TeamsEnriched as the sum of the per-enricher
// counts: each sub-record counts the rows that enricher changed.
func (t *Task) recomputeAggregate() {
	sum := 0
	for _, p := range t.Progress {
		sum += p.TeamsEnriched
	}
	t.TeamsEnriched = sum
}

func (t *Task) progressFor(enricherID string) *EnricherProgress {
	for _, p := range t.Progress {
		if p.EnricherID == enricherID && !p.Status.Terminal() {
			return p
		}
	}
	return nil
}
