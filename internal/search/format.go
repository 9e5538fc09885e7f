package search

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// defaultColumns is the compact column set for terminal output.
var defaultColumns = []string{
	model.FieldTrialID,
	model.FieldPrimaryDrug,
	model.FieldIndication,
	model.FieldLineOfTherapy,
	model.FieldTrialPhase,
	model.FieldTrialStatus,
}

// FormatTable writes rows as an aligned table. A nil column list selects the
// compact default set.
func FormatTable(out io.Writer, rows []model.AnalysisResult, columns []string) {
	if len(columns) == 0 {
		columns = defaultColumns
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, col)
	}
	_, _ = fmt.Fprintln(w)

	for i := range rows {
		r := &rows[i]
		for j, col := range columns {
			if j > 0 {
				_, _ = fmt.Fprint(w, "\t")
			}
			_, _ = fmt.Fprint(w, truncate(r.Value(col), 40))
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()
}

// FormatSummary writes aggregate stats for a result set.
func FormatSummary(out io.Writer, s Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "Trials:\t%d\n", s.Trials)
	_, _ = fmt.Fprintf(w, "Escalated rows:\t%d\n", s.Escalated)
	if s.Rows > 0 {
		_, _ = fmt.Fprintf(w, "Mean quality score:\t%.1f\n", s.MeanScore)
	}
	if len(s.TopDrugs) > 0 {
		_, _ = fmt.Fprintln(w, "Top drugs:")
		for _, c := range s.TopDrugs {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", c.Label, c.N)
		}
	}
	if len(s.TopIndications) > 0 {
		_, _ = fmt.Fprintln(w, "Top indications:")
		for _, c := range s.TopIndications {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", c.Label, c.N)
		}
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
