package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trials",
	Short: "Clinical trial analysis engine",
	Long:  "Fetches trial records from ClinicalTrials.gov, extracts structured analysis fields via Claude models, expands them into comparison rows, and serves structured search over the results.",
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
