package task

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playmaker-hq/teamscout/internal/enricher"
	"github.com/playmaker-hq/teamscout/internal/model"
)

// scriptedEnricher lets tests control per-team behavior inside orchestrated
// runs.
type scriptedEnricher struct {
	id        string
	available bool
	enrich    func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error)
}

func (s *scriptedEnricher) ID() string          { return s.id }
func (s *scriptedEnricher) Name() string        { return "Scripted " + s.id }
func (s *scriptedEnricher) Description() string { return "test enricher" }
func (s *scriptedEnricher) Fields() []string    { return []string{"geo_city"} }
func (s *scriptedEnricher) Available() bool     { return s.available }

func (s *scriptedEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error) {
	if s.enrich == nil {
		return enricher.Wrote("geo_city"), nil
	}
	return s.enrich(ctx, team)
}

func scriptedFactory(id string, fn func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error)) enricher.Factory {
	return func(cfg enricher.Config) enricher.Enricher {
		return &scriptedEnricher{id: id, available: true, enrich: fn}
	}
}

func testRegistry(factories ...enricher.Factory) *enricher.Registry {
	r := enricher.NewRegistry()
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

func fastTaskConfig() enricher.Config {
	return enricher.Config{
		MaxConcurrent: 2,
		MaxRetries:    1,
		RetryDelay:    time.Millisecond,
		BatchDelay:    time.Millisecond,
		BatchSize:     10,
	}
}

func testTeams(n int) []*model.TeamRow {
	teams := make([]*model.TeamRow, n)
	for i := range teams {
		teams[i] = &model.TeamRow{Name: "Team " + strconv.Itoa(i), Region: "Chicago", League: "MLB"}
	}
	return teams
}

// waitTerminal subscribes and blocks until the task reaches a terminal
// state, returning the final snapshot.
func waitTerminal(t *testing.T, o *Orchestrator, id string) *Task {
	t.Helper()
	ch, unsub, err := o.Subscribe(id)
	require.NoError(t, err)
	defer unsub()

	deadline := time.After(5 * time.Second)
	var last *Task
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				require.NotNil(t, last, "channel closed before any snapshot")
				return last
			}
			last = snap
			if snap.Status.Terminal() {
				return snap
			}
		case <-deadline:
			t.Fatal("task did not finish in time")
		}
	}
}

func TestTaskLifecycleCompletes(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil), scriptedFactory("social", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	teams := testTeams(5)
	created, err := o.Create("mlb", "MLB Teams", []string{"geo", "social"}, len(teams))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	require.Len(t, created.Progress, 2)
	assert.Equal(t, StatusPending, created.Progress[0].Status)
	assert.Equal(t, StatusPending, created.Progress[1].Status)

	require.NoError(t, o.Start(context.Background(), created.ID, teams))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	require.Len(t, final.Progress, 2)
	for _, p := range final.Progress {
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, 5, p.TeamsProcessed)
		assert.Equal(t, 5, p.TeamsEnriched)
	}
	require.Len(t, final.Results, 2)
	assert.True(t, final.Results[0].Success)
	assert.Equal(t, 10, final.TeamsEnriched, "aggregate sums the per-enricher counts")
	assert.NotNil(t, final.FinishedAt)
	require.NotNil(t, final.Diff, "a completed task carries its diff")
	assert.Equal(t, "mlb", final.ScraperID)
}

func TestTaskCancelledHasNoDiff(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, 1)
	require.NoError(t, err)
	require.True(t, o.Cancel(created.ID))

	got, _ := o.Get(created.ID)
	assert.Nil(t, got.Diff)
}

func TestTaskRunsEnrichersSequentially(t *testing.T) {
	var active, overlap atomic.Int64
	mk := func(id string) enricher.Factory {
		return scriptedFactory(id, func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error) {
			if active.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			return enricher.Wrote("geo_city"), nil
		})
	}
	reg := testRegistry(mk("a"), mk("b"))

	// MaxConcurrent 1 serializes within an enricher; overlap across
	// enrichers would still show up if they ran in parallel.
	cfg := fastTaskConfig()
	cfg.MaxConcurrent = 1
	o := NewOrchestrator(reg, cfg, 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"a", "b"}, 6)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(6)))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Zero(t, overlap.Load(), "enrichers must not run concurrently")
	require.Len(t, final.Results, 2)
}

func TestTaskUnknownEnricherFailsSubRecordOnly(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"nonsense", "geo"}, 3)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(3)))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusCompleted, final.Status, "one bad enricher must not fail the task")

	require.Len(t, final.Progress, 2)
	assert.Equal(t, StatusFailed, final.Progress[0].Status)
	assert.Contains(t, final.Progress[0].Error, "unknown enricher")
	assert.Equal(t, StatusCompleted, final.Progress[1].Status)
}

func TestTaskUnavailableEnricherFailsSubRecordOnly(t *testing.T) {
	reg := enricher.NewRegistry()
	reg.Register(func(cfg enricher.Config) enricher.Enricher {
		return &scriptedEnricher{id: "locked", available: false}
	})
	reg.Register(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"locked", "geo"}, 2)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(2)))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, StatusFailed, final.Progress[0].Status)
	assert.Contains(t, final.Progress[0].Error, "not available")
	assert.Equal(t, StatusCompleted, final.Progress[1].Status)
}

// brokenSetupEnricher fails its per-run setup hook.
type brokenSetupEnricher struct {
	scriptedEnricher
	prepareErr error
}

func (b *brokenSetupEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	return b.prepareErr
}

func TestTaskSetupErrorFailsTask(t *testing.T) {
	reg := enricher.NewRegistry()
	reg.Register(func(cfg enricher.Config) enricher.Enricher {
		return &brokenSetupEnricher{
			scriptedEnricher: scriptedEnricher{id: "flaky", available: true},
			prepareErr:       eris.New("credential store unreachable"),
		}
	})
	reg.Register(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"flaky", "geo"}, 3)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(3)))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusFailed, final.Status, "a setup failure aborts the whole task")
	assert.Contains(t, final.Error, "credential store unreachable")
	assert.NotNil(t, final.FinishedAt)
	assert.Nil(t, final.Diff, "a failed task carries no diff")

	require.Len(t, final.Progress, 2)
	assert.Equal(t, StatusFailed, final.Progress[0].Status)
	assert.Contains(t, final.Progress[0].Error, "prepare")
	assert.Equal(t, StatusPending, final.Progress[1].Status, "enrichers after the failure never start")
	assert.Nil(t, final.Progress[1].FinishedAt)
}

func TestTaskCancelPending(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, 1)
	require.NoError(t, err)

	require.True(t, o.Cancel(created.ID))

	got, ok := o.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, StatusCancelled, got.Progress[0].Status)

	// Terminal tasks cannot be cancelled again or started.
	assert.False(t, o.Cancel(created.ID))
	assert.Error(t, o.Start(context.Background(), created.ID, testTeams(1)))
}

func TestTaskCancelRunning(t *testing.T) {
	started := make(chan struct{})
	var once atomic.Bool
	reg := testRegistry(scriptedFactory("slow", func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
		return enricher.Wrote("geo_city"), nil
	}))

	cfg := fastTaskConfig()
	cfg.BatchSize = 1 // cancellation lands on a batch boundary quickly
	o := NewOrchestrator(reg, cfg, 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"slow"}, 20)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(20)))

	<-started
	require.True(t, o.Cancel(created.ID))

	final := waitTerminal(t, o, created.ID)
	assert.Equal(t, StatusCancelled, final.Status)
	require.Len(t, final.Progress, 1)
	assert.Less(t, final.Progress[0].TeamsProcessed, 20, "cancellation should stop the run early")
}

func TestTaskSubscribeReceivesProgress(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, 4)
	require.NoError(t, err)

	ch, unsub, err := o.Subscribe(created.ID)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(4)))

	sawRunning := false
	var final *Task
	deadline := time.After(5 * time.Second)
	for final == nil {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before terminal snapshot")
			}
			if snap.Status == StatusRunning {
				sawRunning = true
			}
			if snap.Status.Terminal() {
				final = snap
			}
		case <-deadline:
			t.Fatal("no terminal snapshot")
		}
	}
	assert.True(t, sawRunning)
	assert.Equal(t, StatusCompleted, final.Status)

	// The channel closes after the terminal update.
	_, open := <-ch
	assert.False(t, open)
}

func TestTaskSubscribeTerminalTask(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, 1)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), created.ID, testTeams(1)))
	waitTerminal(t, o, created.ID)

	ch, unsub, err := o.Subscribe(created.ID)
	require.NoError(t, err)
	defer unsub()

	snap, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
	_, open := <-ch
	assert.False(t, open)
}

func TestTaskSlowSubscriberNeverBlocks(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	teams := testTeams(subscriberBuffer * 3) // more updates than the queue holds
	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, len(teams))
	require.NoError(t, err)

	// Subscribe and never read: the run must still finish promptly.
	_, unsub, err := o.Subscribe(created.ID)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, o.Start(context.Background(), created.ID, teams))

	deadline := time.After(5 * time.Second)
	for {
		got, ok := o.Get(created.ID)
		require.True(t, ok)
		if got.Status.Terminal() {
			assert.Equal(t, StatusCompleted, got.Status)
			return
		}
		select {
		case <-deadline:
			t.Fatal("task blocked behind a slow subscriber")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTaskHistoryBounded(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", nil))
	o := NewOrchestrator(reg, fastTaskConfig(), 3)

	var ids []string
	for i := 0; i < 6; i++ {
		created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, 1)
		require.NoError(t, err)
		require.NoError(t, o.Start(context.Background(), created.ID, testTeams(1)))
		waitTerminal(t, o, created.ID)
		ids = append(ids, created.ID)
	}

	list := o.List()
	require.Len(t, list, 3)
	// Newest first, oldest evicted.
	assert.Equal(t, ids[5], list[0].ID)
	assert.Equal(t, ids[3], list[2].ID)

	_, ok := o.Get(ids[0])
	assert.False(t, ok, "evicted task should be gone")
}

func TestTaskHistoryNeverEvictsActive(t *testing.T) {
	release := make(chan struct{})
	reg := testRegistry(scriptedFactory("slow", func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return enricher.Wrote("geo_city"), nil
	}))
	o := NewOrchestrator(reg, fastTaskConfig(), 2)

	running, err := o.Create("mlb", "MLB Teams", []string{"slow"}, 1)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background(), running.ID, testTeams(1)))

	// Flood the history with newer terminal tasks.
	for i := 0; i < 5; i++ {
		c, err := o.Create("mlb", "MLB Teams", []string{"slow"}, 1)
		require.NoError(t, err)
		require.True(t, o.Cancel(c.ID))
	}

	_, ok := o.Get(running.ID)
	assert.True(t, ok, "running task must survive eviction")

	close(release)
	waitTerminal(t, o, running.ID)
}

func TestTaskSnapshotCapturedAtStart(t *testing.T) {
	reg := testRegistry(scriptedFactory("geo", func(ctx context.Context, team *model.TeamRow) (enricher.Outcome, error) {
		team.GeoCity = "Chicago"
		return enricher.Wrote("geo_city"), nil
	}))
	o := NewOrchestrator(reg, fastTaskConfig(), 0)

	teams := []*model.TeamRow{
		{Name: "Chicago Cubs", Region: "Chicago", League: "MLB"},
		{Name: "  chicago   cubs ", Region: "Chicago", League: "MLB"}, // duplicate name, last wins
		{Name: "Boston Red Sox", Region: "Boston", League: "MLB"},
	}
	created, err := o.Create("mlb", "MLB Teams", []string{"geo"}, len(teams))
	require.NoError(t, err)

	_, err = o.Snapshot(created.ID)
	assert.Error(t, err, "no snapshot before start")

	require.NoError(t, o.Start(context.Background(), created.ID, teams))
	waitTerminal(t, o, created.ID)

	snap, err := o.Snapshot(created.ID)
	require.NoError(t, err)
	require.Len(t, snap, 2, "duplicate names collapse under normalization")

	before, ok := snap["chicago cubs"]
	require.True(t, ok)
	assert.Equal(t, "", before["geo_city"], "snapshot reflects pre-enrichment state")
	assert.Equal(t, "Chicago", teams[0].GeoCity, "live rows were enriched after the snapshot")
}

func TestCreateRequiresEnrichers(t *testing.T) {
	o := NewOrchestrator(enricher.NewRegistry(), fastTaskConfig(), 0)
	_, err := o.Create("mlb", "MLB Teams", nil, 0)
	assert.Error(t, err)
}
