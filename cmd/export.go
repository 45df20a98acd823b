package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/export"
)

var (
	exportJSONPath string
	exportXLSXPath string
)

var exportCmd = &cobra.Command{
	Use:   "export <scraper-id>",
	Short: "Export a stored dataset to JSON or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportJSONPath == "" && exportXLSXPath == "" {
			return eris.New("specify --json and/or --xlsx output paths")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ds, err := st.LoadDataset(ctx, args[0])
		if err != nil {
			return err
		}
		if ds == nil {
			return eris.Errorf("no dataset for %q", args[0])
		}

		if exportJSONPath != "" {
			if err := export.JSON(exportJSONPath, ds); err != nil {
				return err
			}
			zap.L().Info("wrote json export", zap.String("path", exportJSONPath), zap.Int("teams", len(ds.Teams)))
		}
		if exportXLSXPath != "" {
			if err := export.XLSX(exportXLSXPath, ds); err != nil {
				return err
			}
			zap.L().Info("wrote xlsx export", zap.String("path", exportXLSXPath), zap.Int("teams", len(ds.Teams)))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportJSONPath, "json", "", "JSON output path")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "XLSX output path")
	rootCmd.AddCommand(exportCmd)
}
