package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/search"
)

var (
	queryTier  string
	queryJSON  bool
	queryLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query QUESTION",
	Short: "Answer a natural-language question over stored results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tierName := queryTier
		if tierName == "" {
			tierName = cfg.Query.Tier
		}
		tier, err := parseTier(tierName)
		if err != nil {
			return err
		}

		question := strings.Join(args, " ")
		fs, err := env.Query.Analyze(ctx, question, tier)
		if err != nil {
			return err
		}

		res, err := env.Searcher.Search(ctx, fs, queryLimit)
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("Tier: %s  Confidence: %.2f\n", fs.Tier, fs.Confidence)
		if fs.QueryIntent != "" {
			fmt.Printf("Intent: %s\n", fs.QueryIntent)
		}
		if len(fs.Filters) > 0 {
			fmt.Println("Filters:")
			for k, v := range fs.Filters {
				fmt.Printf("  %s = %s\n", k, v)
			}
		}
		fmt.Println()
		search.FormatTable(os.Stdout, res.Rows, fs.RelevantFields)
		fmt.Println()
		search.FormatSummary(os.Stdout, search.Summarize(res.Rows))
		return nil
	},
}

func parseTier(name string) (model.QueryTier, error) {
	switch strings.ToLower(name) {
	case "", "structured":
		return model.TierStructured, nil
	case "basic":
		return model.TierBasic, nil
	case "reasoning":
		return model.TierReasoning, nil
	default:
		return 0, fmt.Errorf("unknown query tier %q", name)
	}
}

func init() {
	queryCmd.Flags().StringVar(&queryTier, "tier", "", "query tier: basic, structured, reasoning (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit raw JSON")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "max rows returned")
	rootCmd.AddCommand(queryCmd)
}
