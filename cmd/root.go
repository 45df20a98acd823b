package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "teamscout",
	Short: "Sports team scraping and enrichment engine",
	Long:  "Scrapes professional sports team directories (MLB/MiLB, NFL, WNBA), enriches them with geographic, social, sponsorship, valuation, and brand data, and serves the results over a REST API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
