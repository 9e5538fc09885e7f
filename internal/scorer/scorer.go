// Package scorer computes row-level quality metrics and drives the heuristic
// escalation path for rows whose extraction quality falls below threshold.
package scorer

import (
	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/parser"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
)

// EscalationThreshold is the quality score below which a row is re-derived
// from the structured trial record.
const EscalationThreshold = 20.0

// Score computes the quality metrics over the full canonical schema. A field
// absent from the map counts as a sentinel. Fields flagged ParseErr count as
// errors even when they carry a value.
func Score(fields map[string]model.FieldValue) model.QualityMetrics {
	m := model.QualityMetrics{TotalFields: model.SchemaSize()}
	for _, f := range model.SchemaFields() {
		fv, ok := fields[f]
		switch {
		case ok && fv.ParseErr:
			m.ErrorFields++
		case !ok || fv.IsNA():
			m.NAFields++
		default:
			m.ValidFields++
		}
	}
	if m.TotalFields > 0 {
		m.QualityScore = 100 * float64(m.ValidFields) / float64(m.TotalFields)
	}
	return m
}

// NeedsEscalation reports whether a scored row should be re-derived
// heuristically.
func NeedsEscalation(m model.QualityMetrics) bool {
	return m.QualityScore < EscalationThreshold
}

// DeriveHeuristic builds a full field set from the structured record alone:
// the rule-derived metadata fields plus the per-group heuristics used by the
// parser's terminal fallback stage. It is the global floor when the
// completion service is unreachable.
func DeriveHeuristic(rec *model.TrialRecord) map[string]model.FieldValue {
	out := promptlib.ExtractRecordFields(rec)
	for _, g := range []model.FieldGroup{model.GroupDrug, model.GroupClinical, model.GroupBiomarker} {
		for f, fv := range parser.HeuristicFields(g, rec) {
			out[f] = fv
		}
	}
	return out
}

// Escalate merges heuristically derived values into a low-quality row. Valid
// values from the extraction are never overwritten; only sentinel or
// parse-error fields are replaced, and only by non-sentinel heuristic values.
// Returns the number of fields the escalation filled.
func Escalate(result *model.AnalysisResult, rec *model.TrialRecord) int {
	derived := DeriveHeuristic(rec)
	filled := 0
	for _, f := range model.SchemaFields() {
		cur, ok := result.Fields[f]
		if ok && !cur.IsNA() && !cur.ParseErr {
			continue
		}
		repl, ok := derived[f]
		if !ok || repl.IsNA() {
			continue
		}
		repl.Provenance = model.ProvenanceFallbackHeuristic
		repl.ParseErr = false
		result.Fields[f] = repl
		filled++
	}
	if filled > 0 {
		result.Escalated = true
		result.Metrics = Score(result.Fields)
		zap.L().Info("row escalated to heuristic derivation",
			zap.String("nct_id", result.NCTID),
			zap.Int("fields_filled", filled),
			zap.Float64("quality_score", result.Metrics.QualityScore))
	}
	return filled
}
