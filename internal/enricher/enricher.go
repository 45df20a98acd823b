// Package enricher defines the enrichment contract and the shared batch
// driver that applies an enricher to a team dataset with bounded concurrency,
// per-item retry, and inter-batch pacing.
package enricher

import (
	"context"
	"time"

	"github.com/playmaker-hq/teamscout/internal/model"
)

// Enricher is one pluggable unit of enrichment work. Implementations do the
// real work in EnrichTeam; batching, concurrency, retry, and pacing are
// provided by the Runner. An enricher owns exactly the fields it declares via
// Fields and must not write outside them. Enrichers must no-op (return
// NoChange) on fields that are already populated, so re-running an enricher
// over an enriched dataset produces zero additional changes.
type Enricher interface {
	// ID is the stable identifier used in task requests, progress records,
	// and TeamRow.EnrichmentsApplied.
	ID() string

	Name() string
	Description() string

	// Fields lists the TeamRow field names this enricher populates.
	Fields() []string

	// Available reports whether the enricher can run (required API keys
	// present, and so on). It is called speculatively by registry listings
	// and must be cheap and side-effect free.
	Available() bool

	// EnrichTeam enriches a single team in place. Any error is isolated and
	// retried by the Runner; it never aborts the batch. Timeouts on the
	// enricher's own outbound calls are the enricher's responsibility.
	EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error)
}

// Preparer is an optional interface for per-run setup (HTTP clients,
// pre-fetched caches). Prepare runs once per enrichment run, not once per
// team. An error here is a run-level failure.
type Preparer interface {
	Prepare(ctx context.Context, teams []*model.TeamRow) error
}

// Finisher is the teardown counterpart of Preparer.
type Finisher interface {
	Finish(ctx context.Context, teams []*model.TeamRow) error
}

// Outcome reports what a single EnrichTeam call wrote.
type Outcome struct {
	Changed bool
	Fields  []string // names of fields written, for logging and tests
}

// NoChange reports that nothing was written.
func NoChange() Outcome { return Outcome{} }

// Wrote reports that the named fields were written.
func Wrote(fields ...string) Outcome {
	return Outcome{Changed: true, Fields: fields}
}

// Config tunes the Runner and supplies credentials to enrichers.
type Config struct {
	// MaxConcurrent bounds in-flight EnrichTeam calls within one batch.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxRetries is the total attempts per team (including the first).
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the linear backoff unit between attempts.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`

	// BatchDelay is the politeness pause between batches.
	BatchDelay time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`

	// RequestTimeout bounds individual outbound requests made by enrichers.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// BatchSize is the number of teams per concurrency wave.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`

	// APIKeys carries enricher-specific credentials keyed by service name.
	APIKeys map[string]string `yaml:"api_keys" mapstructure:"api_keys"`
}

// DefaultConfig mirrors the defaults the scrapers have always run with.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  5,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		BatchDelay:     100 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		BatchSize:      50,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = def.BatchDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	return c
}
