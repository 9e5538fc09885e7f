package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/store"
)

var (
	exportOut   string
	exportModel string
	exportLimit int
)

// metaColumns precede the analysis fields in the export.
var metaColumns = []string{"nct_id", "model", "version", "quality_score", "escalated", "prompt_version"}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export latest analysis rows to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := env.Store.ListByFilters(ctx, store.ResultFilter{
			Model: exportModel,
			Limit: exportLimit,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no stored results to export")
		}

		switch {
		case strings.HasSuffix(exportOut, ".xlsx"):
			err = writeXLSX(exportOut, rows)
		case strings.HasSuffix(exportOut, ".csv"):
			err = writeCSV(exportOut, rows)
		default:
			return fmt.Errorf("unsupported export format %q, want .csv or .xlsx", exportOut)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("path", exportOut), zap.Int("rows", len(rows)))
		return nil
	},
}

func exportHeader() []string {
	return append(append([]string{}, metaColumns...), model.SchemaFields()...)
}

func exportRow(r *model.AnalysisResult) []string {
	out := []string{
		r.NCTID,
		r.Model,
		strconv.Itoa(r.Version),
		strconv.FormatFloat(r.Metrics.QualityScore, 'f', 1, 64),
		strconv.FormatBool(r.Escalated),
		r.PromptVersion,
	}
	for _, f := range model.SchemaFields() {
		out = append(out, r.Value(f))
	}
	return out
}

func writeCSV(path string, rows []model.AnalysisResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader()); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for i := range rows {
		if err := w.Write(exportRow(&rows[i])); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func writeXLSX(path string, rows []model.AnalysisResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Analysis")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportHeader() {
		header.AddCell().SetString(col)
	}
	for i := range rows {
		row := sheet.AddRow()
		for _, v := range exportRow(&rows[i]) {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "trials.csv", "output path (.csv or .xlsx)")
	exportCmd.Flags().StringVar(&exportModel, "model", "", "restrict to one model")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "max rows exported")
	rootCmd.AddCommand(exportCmd)
}
