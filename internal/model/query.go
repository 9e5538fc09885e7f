package model

// QueryTier selects how much machinery the query intent analyzer applies.
type QueryTier int

const (
	// TierBasic is deterministic keyword containment against a small synonym
	// table. Last-resort floor when the completion service is unavailable.
	TierBasic QueryTier = iota
	// TierStructured is completion-backed filter extraction against the
	// canonical schema.
	TierStructured
	// TierReasoning handles multi-trial comparative or trend queries and
	// additionally returns the relevant output fields.
	TierReasoning
)

func (t QueryTier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierStructured:
		return "structured"
	case TierReasoning:
		return "reasoning"
	default:
		return "unknown"
	}
}

// QueryFilterSet is the structured interpretation of a free-text question
// about stored trials. Owned by the caller for the duration of one search;
// never persisted.
type QueryFilterSet struct {
	Query          string            `json:"query"`
	Filters        map[string]string `json:"filters"`
	QueryIntent    string            `json:"query_intent"`
	SearchStrategy string            `json:"search_strategy"`
	RelevantFields []string          `json:"relevant_fields,omitempty"`
	Confidence     float64           `json:"confidence_score"`
	Tier           QueryTier         `json:"-"`
	Model          string            `json:"model,omitempty"`
}
