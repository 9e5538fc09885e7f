package promptlib

import "fmt"

// QuerySystemText is the system prompt for query intent analysis.
const QuerySystemText = `You are an expert clinical trial analyst. Extract structured information from natural language queries about clinical trials. Return only a valid JSON object.`

const queryPrompt = `Analyze the following natural language query about clinical trials and extract structured information.

Query: "%s"

Extract:
1. Structured filters (drug names, indications, phases, status, sponsor, line of therapy, biomarkers)
2. Query intent (what the user is looking for)
3. Suggested search strategy
4. Relevant dataset fields to focus on

Return a JSON object with this structure:
{
  "filters": {
    "primary_drug": "extracted drug name or null",
    "indication": "extracted indication or null",
    "trial_phase": "extracted phase or null",
    "trial_status": "extracted status or null",
    "sponsor": "extracted sponsor or null",
    "line_of_therapy": "extracted line of therapy or null",
    "biomarker": "extracted biomarker or null"
  },
  "query_intent": "description of what the user wants",
  "search_strategy": "how to approach this search",
  "relevant_fields": ["list", "of", "relevant", "fields"],
  "confidence_score": 0.0
}

Normalize drug names to generics, phases to PHASE1/PHASE2/PHASE3/PHASE4, and
statuses to registry values (RECRUITING, COMPLETED, ACTIVE_NOT_RECRUITING).
Focus on clinical trial terminology and be precise.`

const queryReasoningSuffix = `

Reason step by step about ambiguous terms before settling on filters: a drug
class ("checkpoint inhibitors") is a mechanism filter, not a primary_drug; an
abbreviation ("mUC") expands to its indication. Resolve comparative phrasings
("newer than", "since 2023") into concrete filter values.`

// BuildQueryPrompt renders the structured-tier query analysis prompt.
func BuildQueryPrompt(query string) string {
	return fmt.Sprintf(queryPrompt, query)
}

// BuildQueryReasoningPrompt renders the reasoning-tier prompt, which adds
// disambiguation instructions on top of the structured prompt.
func BuildQueryReasoningPrompt(query string) string {
	return fmt.Sprintf(queryPrompt, query) + queryReasoningSuffix
}
