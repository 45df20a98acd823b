package enricher

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/resilience"
)

// ProgressFunc receives a progress update after each team completes.
type ProgressFunc func(processed, enriched, total int)

// Runner drives one enricher over a team dataset. Teams are processed in
// fixed-size batches; within a batch up to MaxConcurrent EnrichTeam calls run
// at once, and batches themselves run strictly sequentially with a pacing
// delay between them. Peak concurrent outbound work is therefore
// min(BatchSize, MaxConcurrent).
type Runner struct {
	cfg Config
}

// NewRunner creates a Runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// Run applies e to teams and returns the aggregate result. Per-team failures
// are retried with linear backoff, then logged and counted without failing
// the run; only unavailability, setup/teardown errors, or cancellation flip
// Success to false.
func (r *Runner) Run(ctx context.Context, e Enricher, teams []*model.TeamRow, progress ProgressFunc) *model.EnrichmentResult {
	start := time.Now()
	result := &model.EnrichmentResult{
		EnricherName: e.Name(),
		Timestamp:    start.UTC(),
	}

	if len(teams) == 0 {
		result.Success = true
		return result
	}

	if !e.Available() {
		result.Error = eris.Errorf("enricher %s is not available (missing configuration)", e.Name()).Error()
		return result
	}

	log := zap.L().With(zap.String("enricher", e.ID()))

	if p, ok := e.(Preparer); ok {
		if err := p.Prepare(ctx, teams); err != nil {
			result.Error = eris.Wrapf(err, "enricher %s: prepare", e.ID()).Error()
			result.DurationMS = time.Since(start).Milliseconds()
			return result
		}
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts: r.cfg.MaxRetries,
		Delay:       r.cfg.RetryDelay,
		OnRetry:     resilience.RetryLogger(e.ID(), "enrich_team"),
	}

	var (
		mu        sync.Mutex
		processed int
		enriched  int
		failures  int
	)
	total := len(teams)

	for i := 0; i < len(teams); i += r.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}

		end := min(i+r.cfg.BatchSize, len(teams))
		batch := teams[i:end]

		var g errgroup.Group
		g.SetLimit(r.cfg.MaxConcurrent)

		for _, team := range batch {
			g.Go(func() error {
				outcome, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (Outcome, error) {
					return e.EnrichTeam(ctx, team)
				})

				mu.Lock()
				processed++
				if err != nil {
					failures++
					log.Warn("team enrichment failed",
						zap.String("team", team.Name),
						zap.Error(err),
					)
				} else if outcome.Changed {
					enriched++
					team.ApplyEnrichment(e.ID())
				}
				p, en := processed, enriched
				mu.Unlock()

				if progress != nil {
					progress(p, en, total)
				}
				return nil // per-team failures never abort the batch
			})
		}
		_ = g.Wait()

		// Politeness pause toward the upstream services, skipped after the
		// final batch.
		if end < len(teams) && r.cfg.BatchDelay > 0 {
			timer := time.NewTimer(r.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	if f, ok := e.(Finisher); ok {
		if err := f.Finish(ctx, teams); err != nil {
			result.TeamsProcessed = processed
			result.TeamsEnriched = enriched
			result.Error = eris.Wrapf(err, "enricher %s: finish", e.ID()).Error()
			result.DurationMS = time.Since(start).Milliseconds()
			return result
		}
	}

	result.TeamsProcessed = processed
	result.TeamsEnriched = enriched
	result.DurationMS = time.Since(start).Milliseconds()

	if err := ctx.Err(); err != nil {
		result.Error = eris.Wrapf(err, "enricher %s: interrupted", e.ID()).Error()
		return result
	}

	result.Success = true
	if failures > 0 {
		result.Details = map[string]any{"teams_failed": failures}
	}

	log.Info("enrichment run complete",
		zap.Int("processed", processed),
		zap.Int("enriched", enriched),
		zap.Int("failed", failures),
		zap.Int64("duration_ms", result.DurationMS),
	)
	return result
}
