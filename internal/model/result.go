package model

import "time"

// QualityMetrics summarizes field-level validity for one analysis row.
type QualityMetrics struct {
	TotalFields  int     `json:"total_fields"`
	ValidFields  int     `json:"valid_fields"`
	ErrorFields  int     `json:"error_fields"`
	NAFields     int     `json:"na_fields"`
	QualityScore float64 `json:"quality_score"` // 100 * valid / total
}

// AnalysisResult is one normalized output row for a trial. Immutable once
// persisted; a re-analysis creates a new version rather than mutating the old
// one unless explicitly forced.
type AnalysisResult struct {
	RunID     string    `json:"run_id"`
	NCTID     string    `json:"nct_id"`
	Model     string    `json:"model"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// Fields maps canonical field key -> FieldValue. Iterate via
	// model.SchemaFields() for column order.
	Fields map[string]FieldValue `json:"fields"`

	Metrics QualityMetrics `json:"metrics"`

	// PromptVersion records which rulebook revision produced this row.
	PromptVersion string `json:"prompt_version"`
	// Escalated marks rows that went through heuristic fallback.
	Escalated bool `json:"escalated,omitempty"`
}

// Value returns the standardized value for a field, or the sentinel when the
// field is absent from the row.
func (r *AnalysisResult) Value(field string) string {
	if fv, ok := r.Fields[field]; ok {
		return fv.Value
	}
	return NotAvailable
}

// Clone returns a deep copy of the result. Row expansion mutates copies, never
// the merged base row.
func (r *AnalysisResult) Clone() *AnalysisResult {
	out := *r
	out.Fields = make(map[string]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return &out
}

// RowSplitGroup is the ordered set of AnalysisResults produced from one
// TrialRecord and one model. Rows are ordered by combination index, then
// line-of-therapy index, regardless of extraction completion order.
type RowSplitGroup struct {
	NCTID string           `json:"nct_id"`
	Model string           `json:"model"`
	Rows  []AnalysisResult `json:"rows"`
}

// RunState is the orchestrator state machine position for one (trial, model)
// run.
type RunState string

const (
	StateRequested           RunState = "requested"
	StateExtractingDrug      RunState = "extracting_drug"
	StateExtractingClinical  RunState = "extracting_clinical"
	StateExtractingBiomarker RunState = "extracting_biomarker"
	StateMerged              RunState = "merged"
	StateExpanded            RunState = "expanded"
	StateScored              RunState = "scored"
	StateFallbackEscalated   RunState = "fallback_escalated"
	StatePersisted           RunState = "persisted"
	StateFailed              RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}
