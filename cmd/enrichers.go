package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/playmaker-hq/teamscout/internal/enricher"
)

var enrichersCmd = &cobra.Command{
	Use:   "enrichers",
	Short: "List available enrichers",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, info := range enricher.DefaultRegistry().List() {
			status := "available"
			if !info.Available {
				status = "unavailable (missing API key)"
			}
			cmd.Printf("%-12s %s — %s [%s]\n", info.ID, info.Name, info.Description, status)
			cmd.Printf("%-12s fields: %s\n", "", strings.Join(info.Fields, ", "))
		}
		return nil
	},
}

var scrapersCmd = &cobra.Command{
	Use:   "scrapers",
	Short: "List available scrapers",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, info := range newScraperRegistry().List() {
			cmd.Println(fmt.Sprintf("%-12s %s — %s", info.ID, info.Name, info.Description))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichersCmd)
	rootCmd.AddCommand(scrapersCmd)
}
