package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/search"
)

var (
	analyzeModel string
	analyzeForce bool
	analyzeJSON  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze NCT_ID...",
	Short: "Fetch and analyze one or more trials",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, nctID := range args {
			group, err := env.Analyzer.Analyze(ctx, nctID, analyzeModel, analyzeForce)
			if err != nil {
				zap.L().Error("analysis failed", zap.String("trial", nctID), zap.Error(err))
				return err
			}

			if analyzeJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(group); err != nil {
					return err
				}
				continue
			}

			fmt.Printf("%s: %d row(s), version %d\n", group.NCTID, len(group.Rows), group.Rows[0].Version)
			search.FormatTable(os.Stdout, group.Rows, nil)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "model id (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "re-analyze even when results exist")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(analyzeCmd)
}
