package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/export"
	"github.com/playmaker-hq/teamscout/internal/store"
)

var (
	scrapeJSONPath string
	scrapeXLSXPath string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <scraper-id>",
	Short: "Run a scraper and store its dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		registry := newScraperRegistry()
		sc := registry.Get(args[0])
		if sc == nil {
			return eris.Errorf("unknown scraper %q (have: %v)", args[0], registry.IDs())
		}

		zap.L().Info("scraping", zap.String("scraper", sc.ID()), zap.String("source", sc.SourceURL()))
		teams, result, err := sc.Scrape(ctx)
		if err != nil {
			return eris.Wrapf(err, "scrape %s", sc.ID())
		}

		if err := st.SaveDataset(ctx, sc.ID(), teams, result.Timestamp); err != nil {
			return err
		}

		zap.L().Info("scrape complete",
			zap.String("scraper", sc.ID()),
			zap.Int("teams", result.TeamsCount),
			zap.Any("breakdown", result.Breakdown),
			zap.Bool("used_fallback", result.UsedFallback),
			zap.Int64("duration_ms", result.DurationMS),
		)

		ds := &store.Dataset{ScraperID: sc.ID(), Teams: teams, ScrapedAt: result.Timestamp}
		if scrapeJSONPath != "" {
			if err := export.JSON(scrapeJSONPath, ds); err != nil {
				return err
			}
			zap.L().Info("wrote json export", zap.String("path", scrapeJSONPath))
		}
		if scrapeXLSXPath != "" {
			if err := export.XLSX(scrapeXLSXPath, ds); err != nil {
				return err
			}
			zap.L().Info("wrote xlsx export", zap.String("path", scrapeXLSXPath))
		}

		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeJSONPath, "json", "", "also write the dataset to a JSON file")
	scrapeCmd.Flags().StringVar(&scrapeXLSXPath, "xlsx", "", "also write the dataset to an XLSX workbook")
	rootCmd.AddCommand(scrapeCmd)
}
