// Package query turns free-text questions about stored trials into
// structured filter sets. Three tiers: a deterministic keyword floor, a
// completion-backed structured tier, and a reasoning tier for comparative
// questions. The completion tiers reuse the extraction parser's lenient JSON
// handling and degrade to the keyword floor when the gateway fails.
package query

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/parser"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
	"github.com/ishankgp/clinical-trial/pkg/anthropic"
)

// Completer is the slice of the completion gateway the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, phase string, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Analyzer interprets natural-language queries.
type Analyzer struct {
	gateway   Completer
	model     string
	maxTokens int64
}

// New creates a query analyzer. A nil gateway pins every request to the
// basic tier.
func New(gateway Completer, modelID string) *Analyzer {
	return &Analyzer{gateway: gateway, model: modelID, maxTokens: 2048}
}

// Analyze produces the filter set for one query at the requested tier.
// Completion failures never surface; the basic tier is the floor.
func (a *Analyzer) Analyze(ctx context.Context, queryText string, tier model.QueryTier) (*model.QueryFilterSet, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return &model.QueryFilterSet{Filters: map[string]string{}, Tier: model.TierBasic}, nil
	}

	if tier == model.TierBasic || a.gateway == nil {
		return a.basicAnalyze(queryText), nil
	}

	fs, err := a.completionAnalyze(ctx, queryText, tier)
	if err != nil {
		zap.L().Warn("query analysis degraded to basic tier",
			zap.String("tier", tier.String()),
			zap.Error(err))
		return a.basicAnalyze(queryText), nil
	}
	return fs, nil
}

// queryResponse mirrors the JSON shape the query prompts request.
type queryResponse struct {
	Filters        map[string]any `json:"filters"`
	QueryIntent    string         `json:"query_intent"`
	SearchStrategy string         `json:"search_strategy"`
	RelevantFields []string       `json:"relevant_fields"`
	Confidence     float64        `json:"confidence_score"`
}

func (a *Analyzer) completionAnalyze(ctx context.Context, queryText string, tier model.QueryTier) (*model.QueryFilterSet, error) {
	var prompt, phase string
	var attachments []anthropic.Attachment
	switch tier {
	case model.TierReasoning:
		prompt = promptlib.BuildQueryReasoningPrompt(queryText)
		phase = "query-reasoning"
		attachments = []anthropic.Attachment{fieldRulebookAttachment()}
	default:
		prompt = promptlib.BuildQueryPrompt(queryText)
		phase = "query-structured"
	}

	resp, err := a.gateway.Complete(ctx, phase, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(promptlib.QuerySystemText),
		Messages: []anthropic.Message{{
			Role:        "user",
			Content:     prompt,
			Attachments: attachments,
		}},
	})
	if err != nil {
		return nil, err
	}

	cleaned := parser.CleanJSON(resp.Text())
	var qr queryResponse
	if err := json.Unmarshal([]byte(cleaned), &qr); err != nil {
		return nil, err
	}

	fs := &model.QueryFilterSet{
		Query:          queryText,
		Filters:        normalizeFilters(qr.Filters),
		QueryIntent:    qr.QueryIntent,
		SearchStrategy: qr.SearchStrategy,
		Confidence:     clampConfidence(qr.Confidence),
		Tier:           tier,
		Model:          a.model,
	}
	if tier == model.TierReasoning {
		fs.RelevantFields = qr.RelevantFields
	}
	return fs, nil
}

// normalizeFilters keeps string-valued filters, drops null-ish values, maps
// the prompt's filter keys onto canonical field keys, and standardizes
// vocabulary-governed values.
func normalizeFilters(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for key, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") ||
			strings.EqualFold(s, model.NotAvailable) {
			continue
		}
		switch key {
		case "biomarker":
			out[model.FieldBiomarkerMutations] = promptlib.StandardizeBiomarker(s)
		case model.FieldPrimaryDrug:
			out[key] = promptlib.StandardizeDrugName(s)
		case model.FieldTrialPhase, model.FieldTrialStatus:
			out[key] = strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
		default:
			out[key] = s
		}
	}
	return out
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// fieldRulebookAttachment grounds the reasoning tier in the canonical column
// set so relevant_fields come back as real field keys.
func fieldRulebookAttachment() anthropic.Attachment {
	var b strings.Builder
	b.WriteString("Canonical analysis fields, in column order:\n")
	for _, f := range model.SchemaFields() {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return anthropic.Attachment{Name: "field-rulebook", Text: b.String()}
}
