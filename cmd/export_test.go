package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ishankgp/clinical-trial/internal/model"
)

func sampleRows() []model.AnalysisResult {
	return []model.AnalysisResult{
		{
			RunID:     "run-1",
			NCTID:     "NCT00000001",
			Model:     "claude-sonnet-4-5-20250929",
			Version:   1,
			Timestamp: time.Now().UTC(),
			Fields: map[string]model.FieldValue{
				model.FieldTrialID:     {Field: model.FieldTrialID, Value: "NCT00000001"},
				model.FieldPrimaryDrug: {Field: model.FieldPrimaryDrug, Value: "semaglutide"},
				model.FieldIndication:  {Field: model.FieldIndication, Value: "Diabetes"},
			},
			Metrics:       model.QualityMetrics{QualityScore: 88.5},
			PromptVersion: "v1.2",
		},
	}
}

func TestExportHeader(t *testing.T) {
	header := exportHeader()
	require.Greater(t, len(header), len(metaColumns))
	assert.Equal(t, "nct_id", header[0])
	assert.Equal(t, model.SchemaFields()[0], header[len(metaColumns)])
}

func TestExportRow_SentinelForAbsentFields(t *testing.T) {
	rows := sampleRows()
	out := exportRow(&rows[0])
	require.Len(t, out, len(exportHeader()))

	assert.Equal(t, "NCT00000001", out[0])
	assert.Equal(t, "88.5", out[3])
	// Absent fields export as the sentinel, never empty.
	assert.Contains(t, out, model.NotAvailable)
	assert.NotContains(t, out, "")
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeCSV(path, sampleRows()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader(), records[0])
	assert.Equal(t, "NCT00000001", records[1][0])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, writeXLSX(path, sampleRows()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Analysis", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "nct_id", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "NCT00000001", sheet.Rows[1].Cells[0].Value)
}
