package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/enricher"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/store"
	"github.com/playmaker-hq/teamscout/internal/task"
)

var enrichWith []string

var enrichCmd = &cobra.Command{
	Use:   "enrich <scraper-id>",
	Short: "Run enrichers over a stored dataset",
	Long:  "Runs the requested enrichers (default: all available) over the scraper's stored dataset, then saves the enriched teams and prints a change summary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		scraperID := args[0]
		ds, err := st.LoadDataset(ctx, scraperID)
		if err != nil {
			return err
		}
		if ds == nil {
			return eris.Errorf("no dataset for %q; run `teamscout scrape %s` first", scraperID, scraperID)
		}

		registry := enricher.DefaultRegistry()
		ids := enrichWith
		if len(ids) == 0 {
			for _, info := range registry.List() {
				if info.Available {
					ids = append(ids, info.ID)
				}
			}
		}
		for _, id := range ids {
			if !registry.Has(id) {
				return eris.Errorf("unknown enricher %q (have: %v)", id, registry.IDs())
			}
		}

		teams := make([]*model.TeamRow, len(ds.Teams))
		for i := range ds.Teams {
			teams[i] = &ds.Teams[i]
		}

		orch := task.NewOrchestrator(registry, cfg.Enrich, cfg.Tasks.HistoryLimit)
		t, err := orch.Create(scraperID, scraperID, ids, len(teams))
		if err != nil {
			return err
		}

		updates, unsubscribe, err := orch.Subscribe(t.ID)
		if err != nil {
			return err
		}
		defer unsubscribe()

		if err := orch.Start(ctx, t.ID, teams); err != nil {
			return err
		}

		var final *task.Task
		for snapshot := range updates {
			logProgress(snapshot)
			if snapshot.Status.Terminal() {
				final = snapshot
			}
		}
		if final == nil {
			if got, ok := orch.Get(t.ID); ok {
				final = got
			} else {
				return eris.New("task vanished before finishing")
			}
		}

		if err := st.SaveDataset(ctx, scraperID, ds.Teams, time.Now().UTC()); err != nil {
			return err
		}
		if err := st.SaveTask(ctx, store.TaskRecord{
			ID:            final.ID,
			ScraperID:     final.ScraperID,
			Enrichers:     final.EnricherIDs,
			Status:        string(final.Status),
			TeamsTotal:    final.TeamsTotal,
			TeamsEnriched: final.TeamsEnriched,
			Error:         final.Error,
			CreatedAt:     final.CreatedAt,
			FinishedAt:    final.FinishedAt,
		}); err != nil {
			return err
		}

		printSummary(cmd, final)
		if final.Status != task.StatusCompleted {
			return eris.Errorf("enrichment %s", final.Status)
		}
		return nil
	},
}

// logProgress logs the currently running sub-record, if any.
func logProgress(t *task.Task) {
	for _, p := range t.Progress {
		if p.Status == task.StatusRunning {
			zap.L().Info("enriching",
				zap.String("enricher", p.EnricherID),
				zap.Int("processed", p.TeamsProcessed),
				zap.Int("enriched", p.TeamsEnriched),
				zap.Int("total", p.TeamsTotal),
			)
			return
		}
	}
}

func printSummary(cmd *cobra.Command, t *task.Task) {
	cmd.Printf("task %s: %s (%d/%d teams enriched)\n", t.ID, t.Status, t.TeamsEnriched, t.TeamsTotal)
	for _, p := range t.Progress {
		line := fmt.Sprintf("  %-12s %-10s %d/%d", p.EnricherID, p.Status, p.TeamsEnriched, p.TeamsTotal)
		if p.Error != "" {
			line += "  (" + p.Error + ")"
		}
		cmd.Println(line)
	}
	if t.Diff != nil {
		cmd.Printf("changes: %d across %d teams (+%d new, -%d removed)\n",
			t.Diff.TotalChanges, len(t.Diff.Teams), len(t.Diff.TeamsAdded), len(t.Diff.TeamsRemoved))
	}
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichWith, "enrichers", nil, "comma-separated enricher IDs (default: all available)")
	rootCmd.AddCommand(enrichCmd)
}
