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
	searchDrug       string
	searchIndication string
	searchFilters    []string
	searchLimit      int
	searchJSON       bool
	searchSummary    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored analysis rows by field filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filters := make(map[string]string)
		if searchDrug != "" {
			filters[model.FieldPrimaryDrug] = searchDrug
		}
		if searchIndication != "" {
			filters[model.FieldIndication] = searchIndication
		}
		for _, f := range searchFilters {
			key, value, ok := strings.Cut(f, "=")
			if !ok {
				return fmt.Errorf("bad filter %q, want field=value", f)
			}
			filters[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}

		res, err := env.Searcher.Search(ctx, &model.QueryFilterSet{
			Filters: filters,
			Tier:    model.TierBasic,
		}, searchLimit)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		search.FormatTable(os.Stdout, res.Rows, nil)
		if searchSummary {
			fmt.Println()
			search.FormatSummary(os.Stdout, search.Summarize(res.Rows))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchDrug, "drug", "", "match primary drug")
	searchCmd.Flags().StringVar(&searchIndication, "indication", "", "match indication")
	searchCmd.Flags().StringSliceVar(&searchFilters, "filter", nil, "field=value filter, repeatable")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max rows returned")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit raw JSON")
	searchCmd.Flags().BoolVar(&searchSummary, "summary", false, "print aggregate stats")
	rootCmd.AddCommand(searchCmd)
}
