package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadworks/salesfilter/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "salesfilter",
	Short: "Lead scoring service for telecom sales",
	Long:  "Scores lead lists through a deterministic rule engine with domain liveness, network verification and company enrichment. Runs as an HTTP service or as a batch CLI.",
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
