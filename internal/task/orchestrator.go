package task

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/diff"
	"github.com/playmaker-hq/teamscout/internal/enricher"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

const (
	// defaultHistoryLimit bounds how many terminal tasks are retained.
	defaultHistoryLimit = 50

	// subscriberBuffer is the per-subscriber event queue. A subscriber that
	// falls this far behind loses intermediate updates rather than slowing
	// the task down; the terminal update is delivered as long as the queue
	// drains eventually.
	subscriberBuffer = 64
)

// Orchestrator owns task lifecycle: it creates tasks, drives their enrichers
// sequentially through the shared Runner, fans out progress updates to
// subscribers, and retains a bounded newest-first history.
type Orchestrator struct {
	registry *enricher.Registry
	cfg      enricher.Config

	mu           sync.Mutex
	tasks        map[string]*Task
	order        []string // newest first
	historyLimit int
	cancels      map[string]context.CancelFunc
	subs         map[string]map[int]chan *Task
	nextSubID    int
}

// NewOrchestrator builds an orchestrator over a registry constructed at
// startup. historyLimit bounds retained terminal tasks; <= 0 uses the
// default.
func NewOrchestrator(registry *enricher.Registry, cfg enricher.Config, historyLimit int) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Orchestrator{
		registry:     registry,
		cfg:          cfg,
		tasks:        map[string]*Task{},
		historyLimit: historyLimit,
		cancels:      map[string]context.CancelFunc{},
		subs:         map[string]map[int]chan *Task{},
	}
}

// Create registers a pending task. Enricher IDs are not validated here:
// unknown IDs surface as failed sub-records when the task runs, so one typo
// does not sink the whole request. HTTP and CLI callers validate up front
// when they want synchronous errors instead.
func (o *Orchestrator) Create(scraperID, scraperName string, enricherIDs []string, teamsTotal int) (*Task, error) {
	if len(enricherIDs) == 0 {
		return nil, eris.New("task: at least one enricher is required")
	}

	t := newTask(scraperID, scraperName, enricherIDs, teamsTotal)

	o.mu.Lock()
	o.tasks[t.ID] = t
	o.order = append([]string{t.ID}, o.order...)
	o.evictLocked()
	clone := t.Clone()
	o.mu.Unlock()

	return clone, nil
}

// Get returns a snapshot of the task, or false if unknown.
func (o *Orchestrator) Get(id string) (*Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns snapshots of all retained tasks, newest first.
func (o *Orchestrator) List() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Task, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.tasks[id].Clone())
	}
	return out
}

// Snapshot returns the before-snapshot captured when the task started, or an
// error if the task is unknown or never started.
func (o *Orchestrator) Snapshot(id string) (map[string]map[string]any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil, eris.Errorf("task: unknown task %s", id)
	}
	if t.before == nil {
		return nil, eris.Errorf("task: %s has not started", id)
	}
	return t.before, nil
}

// Start launches the task's enrichment run in a goroutine. The task must be
// pending; starting a task twice is an error.
func (o *Orchestrator) Start(ctx context.Context, id string, teams []*model.TeamRow) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return eris.Errorf("task: unknown task %s", id)
	}
	if t.Status != StatusPending {
		o.mu.Unlock()
		return eris.Errorf("task: %s is %s, not pending", id, t.Status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancels[id] = cancel

	now := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
	t.before = snapshotTeams(teams)
	o.mu.Unlock()

	o.publish(id)

	go o.run(runCtx, id, teams)
	return nil
}

// Cancel requests cooperative cancellation. A pending task is cancelled
// immediately; a running task stops at its next batch boundary. Cancelling a
// terminal task is a no-op reported as false.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok || t.Status.Terminal() {
		o.mu.Unlock()
		return false
	}

	if t.Status == StatusPending {
		o.finishLocked(t, StatusCancelled, "cancelled before start")
		o.mu.Unlock()
		o.publish(id)
		o.closeSubs(id)
		return true
	}

	cancel := o.cancels[id]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Subscribe registers for task updates. Each update is a full task snapshot;
// the returned func unsubscribes. Updates are dropped, never blocking, when
// the subscriber's queue is full. Subscribing to a terminal task delivers one
// final snapshot and closes the channel.
func (o *Orchestrator) Subscribe(id string) (<-chan *Task, func(), error) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return nil, nil, eris.Errorf("task: unknown task %s", id)
	}

	ch := make(chan *Task, subscriberBuffer)
	if t.Status.Terminal() {
		ch <- t.Clone()
		close(ch)
		o.mu.Unlock()
		return ch, func() {}, nil
	}

	o.nextSubID++
	subID := o.nextSubID
	if o.subs[id] == nil {
		o.subs[id] = map[int]chan *Task{}
	}
	o.subs[id][subID] = ch
	ch <- t.Clone() // current state first
	o.mu.Unlock()

	unsubscribe := func() {
		o.mu.Lock()
		if subs, ok := o.subs[id]; ok {
			if _, live := subs[subID]; live {
				delete(subs, subID)
				close(ch)
			}
		}
		o.mu.Unlock()
	}
	return ch, unsubscribe, nil
}

// run drives the task's enrichers sequentially.
func (o *Orchestrator) run(ctx context.Context, id string, teams []*model.TeamRow) {
	log := zap.L().With(zap.String("task", id))
	runner := enricher.NewRunner(o.cfg)

	o.mu.Lock()
	t := o.tasks[id]
	ids := append([]string(nil), t.EnricherIDs...)
	o.mu.Unlock()

	cancelled := false
	runErr := ""
	for _, eid := range ids {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		e := o.registry.Create(eid, o.cfg)
		if e == nil {
			o.failProgress(id, eid, "unknown enricher")
			log.Warn("skipping unknown enricher", zap.String("enricher", eid))
			continue
		}
		if !e.Available() {
			o.failProgress(id, eid, "enricher "+eid+" is not available (missing configuration)")
			log.Warn("skipping unavailable enricher", zap.String("enricher", eid))
			continue
		}

		o.startProgress(id, eid)

		progress := func(processed, enriched, total int) {
			o.updateProgress(id, eid, processed, enriched, total)
		}
		result := runner.Run(ctx, e, teams, progress)

		o.finishProgress(id, eid, result)

		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if !result.Success {
			// A run-level failure (setup/teardown, not per-team) aborts the
			// task; enrichers that never started stay pending.
			runErr = result.Error
			log.Error("enricher run failed",
				zap.String("enricher", eid),
				zap.String("error", result.Error),
			)
			break
		}
	}

	o.mu.Lock()
	switch {
	case cancelled:
		o.finishLocked(t, StatusCancelled, "cancelled")
	case runErr != "":
		o.finishLocked(t, StatusFailed, runErr)
	default:
		t.Diff = diff.Compute(t.before, teams)
		o.finishLocked(t, StatusCompleted, "")
	}
	delete(o.cancels, id)
	status := t.Status
	o.mu.Unlock()

	o.publish(id)
	o.closeSubs(id)

	log.Info("task finished", zap.String("status", string(status)))
}

func (o *Orchestrator) startProgress(id, enricherID string) {
	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		if p := t.progressFor(enricherID); p != nil {
			now := time.Now().UTC()
			p.Status = StatusRunning
			p.StartedAt = &now
		}
	}
	o.mu.Unlock()
	o.publish(id)
}

func (o *Orchestrator) updateProgress(id, enricherID string, processed, enriched, total int) {
	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		if p := t.progressFor(enricherID); p != nil {
			p.TeamsProcessed = processed
			p.TeamsEnriched = enriched
			p.TeamsTotal = total
		}
		t.recomputeAggregate()
	}
	o.mu.Unlock()
	o.publish(id)
}

func (o *Orchestrator) finishProgress(id, enricherID string, result *model.EnrichmentResult) {
	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		if p := t.progressFor(enricherID); p != nil {
			now := time.Now().UTC()
			p.FinishedAt = &now
			p.TeamsProcessed = result.TeamsProcessed
			p.TeamsEnriched = result.TeamsEnriched
			if result.Success {
				p.Status = StatusCompleted
			} else {
				p.Status = StatusFailed
				p.Error = result.Error
			}
		}
		t.Results = append(t.Results, result)
		t.recomputeAggregate()
	}
	o.mu.Unlock()
	o.publish(id)
}

func (o *Orchestrator) failProgress(id, enricherID, msg string) {
	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		if p := t.progressFor(enricherID); p != nil {
			now := time.Now().UTC()
			p.Status = StatusFailed
			p.Error = msg
			p.FinishedAt = &now
		}
	}
	o.mu.Unlock()
	o.publish(id)
}

// finishLocked moves a task to a terminal state. Caller holds o.mu.
func (o *Orchestrator) finishLocked(t *Task, status Status, errMsg string) {
	now := time.Now().UTC()
	t.Status = status
	t.FinishedAt = &now
	if errMsg != "" && status != StatusCompleted {
		t.Error = errMsg
	}
	// Cancellation sweeps through sub-records that never ran; on failure they
	// stay pending so the record shows which enrichers never got a chance.
	if status == StatusCancelled {
		for _, p := range t.Progress {
			if !p.Status.Terminal() {
				p.Status = StatusCancelled
				p.FinishedAt = &now
			}
		}
	}
}

// publish sends the task's current snapshot to every subscriber. Sends never
// block: a full queue drops the update.
func (o *Orchestrator) publish(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return
	}
	subs := o.subs[id]
	if len(subs) == 0 {
		return
	}
	snapshot := t.Clone()
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default: // slow subscriber, drop
		}
	}
}

// closeSubs closes and removes all subscribers of a terminal task.
func (o *Orchestrator) closeSubs(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs[id] {
		close(ch)
	}
	delete(o.subs, id)
}

// evictLocked drops the oldest terminal tasks beyond the history limit.
// Running and pending tasks are never evicted. Caller holds o.mu.
func (o *Orchestrator) evictLocked() {
	if len(o.order) <= o.historyLimit {
		return
	}
	kept := make([]string, 0, len(o.order))
	over := len(o.order) - o.historyLimit
	for i := len(o.order) - 1; i >= 0; i-- { // oldest first
		id := o.order[i]
		if over > 0 && o.tasks[id].Status.Terminal() {
			delete(o.tasks, id)
			over--
			continue
		}
		kept = append(kept, id)
	}
	// kept is oldest-first; restore newest-first.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	o.order = kept
}

// snapshotTeams captures the dataset's field maps keyed by normalized team
// name. Duplicate names resolve last-wins.
func snapshotTeams(teams []*model.TeamRow) map[string]map[string]any {
	snap := make(map[string]map[string]any, len(teams))
	for _, t := range teams {
		snap[names.Key(t.Name)] = t.FieldMap()
	}
	return snap
}
