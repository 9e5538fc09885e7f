package main

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ishankgp/clinical-trial/internal/model"
)

var (
	batchModels      []string
	batchForce       bool
	batchConcurrency int
)

// batchOutcome is one (trial, model) cell of the comparison summary.
type batchOutcome struct {
	NCTID     string
	Model     string
	Rows      int
	MeanScore float64
	Escalated bool
	Err       error
}

var batchCmd = &cobra.Command{
	Use:   "batch [NCT_ID...]",
	Short: "Analyze many trials across models and compare",
	Long:  "Runs every requested trial against every requested model. With no arguments, all trials in the registry cache are analyzed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		trials := args
		if len(trials) == 0 {
			trials, err = env.Cache.List()
			if err != nil {
				return err
			}
			if len(trials) == 0 {
				return fmt.Errorf("no trials given and registry cache is empty")
			}
		}

		models := batchModels
		if len(models) == 0 {
			models = []string{cfg.Analyzer.Model}
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentTrials
		}

		zap.L().Info("starting batch",
			zap.Int("trials", len(trials)),
			zap.Strings("models", models),
			zap.Int("concurrency", concurrency))

		var mu sync.Mutex
		var outcomes []batchOutcome

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, nctID := range trials {
			for _, modelID := range models {
				nctID, modelID := nctID, modelID
				g.Go(func() error {
					out := batchOutcome{NCTID: nctID, Model: modelID}
					group, err := env.Analyzer.Analyze(gctx, nctID, modelID, batchForce)
					if err != nil {
						out.Err = err
						zap.L().Warn("batch trial failed",
							zap.String("trial", nctID),
							zap.String("model", modelID),
							zap.Error(err))
					} else {
						out.Rows = len(group.Rows)
						out.MeanScore = meanScore(group.Rows)
						out.Escalated = anyEscalated(group.Rows)
					}
					mu.Lock()
					outcomes = append(outcomes, out)
					mu.Unlock()
					// Failures are reported in the summary, not fatal.
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}

		formatBatchSummary(outcomes)
		return nil
	},
}

func meanScore(rows []model.AnalysisResult) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for i := range rows {
		sum += rows[i].Metrics.QualityScore
	}
	return sum / float64(len(rows))
}

func anyEscalated(rows []model.AnalysisResult) bool {
	for i := range rows {
		if rows[i].Escalated {
			return true
		}
	}
	return false
}

// formatBatchSummary writes the trial-by-model comparison table.
func formatBatchSummary(outcomes []batchOutcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].NCTID != outcomes[j].NCTID {
			return outcomes[i].NCTID < outcomes[j].NCTID
		}
		return outcomes[i].Model < outcomes[j].Model
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TRIAL\tMODEL\tROWS\tSCORE\tESCALATED\tERROR")
	failed := 0
	for _, o := range outcomes {
		errText := ""
		if o.Err != nil {
			failed++
			errText = o.Err.Error()
			if len(errText) > 40 {
				errText = errText[:37] + "..."
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t%s\n", o.NCTID, o.Model, errText)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%v\t\n", o.NCTID, o.Model, o.Rows, o.MeanScore, o.Escalated)
	}
	_ = w.Flush()

	fmt.Printf("\n%d analyzed, %d failed\n", len(outcomes)-failed, failed)
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchModels, "models", nil, "comma-separated model ids (default analyzer model)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "re-analyze trials that already have results")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent analyses (default from config)")
	rootCmd.AddCommand(batchCmd)
}
