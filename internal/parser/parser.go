// Package parser turns completion-service responses into canonical field
// values. Parsing degrades through a fixed chain: strict JSON, lenient
// extraction of the largest JSON object, per-field regex scavenging, and
// finally heuristic derivation from the structured trial record. Every stage
// produces the full field set for its group; missing values carry the
// NotAvailable sentinel so no field is ever null.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
)

// ParseStatus reports how far down the fallback chain a response went.
type ParseStatus string

const (
	// ParsedOK means strict or lenient JSON parsing succeeded.
	ParsedOK ParseStatus = "ok"
	// ParsedPartial means only the regex stage recovered values.
	ParsedPartial ParseStatus = "partial"
	// ParsedFail means nothing was recoverable from the response text and
	// the fields were heuristically derived from the record.
	ParsedFail ParseStatus = "fail"
)

// GroupResult is the outcome of parsing one field group's response.
type GroupResult struct {
	Group  model.FieldGroup
	Status ParseStatus
	Fields map[string]model.FieldValue
}

// ParseGroup runs the fallback chain over a response for one field group.
// rec feeds the terminal heuristic stage; it must be the record the prompt
// was built from.
func ParseGroup(text string, group model.FieldGroup, rec *model.TrialRecord) GroupResult {
	fields := model.GroupFields(group)

	if raw, ok := parseStrict(text); ok {
		return GroupResult{Group: group, Status: ParsedOK, Fields: buildFields(group, fields, raw)}
	}

	if raw, ok := parseLenient(text); ok {
		return GroupResult{Group: group, Status: ParsedOK, Fields: buildFields(group, fields, raw)}
	}

	if raw, ok := parseFieldRegex(text, fields); ok {
		zap.L().Warn("response parsed by per-field regex",
			zap.String("group", string(group)))
		return GroupResult{Group: group, Status: ParsedPartial, Fields: buildFields(group, fields, raw)}
	}

	zap.L().Warn("response unparseable, deriving fields heuristically",
		zap.String("group", string(group)),
		zap.Int("response_len", len(text)))
	return GroupResult{Group: group, Status: ParsedFail, Fields: HeuristicFields(group, rec)}
}

// parseStrict accepts only a response that is a bare JSON object.
func parseStrict(text string) (map[string]any, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, false
	}
	return raw, true
}

// parseLenient strips markdown fences, takes the largest balanced JSON
// object in the text, repairs trailing truncation, and tries again.
func parseLenient(text string) (map[string]any, bool) {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, false
	}
	return raw, true
}

// parseFieldRegex scavenges individual "key": "value" pairs out of text that
// is not valid JSON at all. Returns ok when at least one field was found.
func parseFieldRegex(text string, fields []string) (map[string]any, bool) {
	raw := make(map[string]any)
	for _, f := range fields {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(f) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
		if m := re.FindStringSubmatch(text); m != nil {
			var v string
			if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &v); err == nil {
				raw[f] = v
			} else {
				raw[f] = m[1]
			}
		}
	}
	return raw, len(raw) > 0
}

// buildFields converts a raw JSON map into the canonical field set for a
// group: coercing value types, filling absent fields with the sentinel, and
// applying the standardization vocabulary.
func buildFields(group model.FieldGroup, fields []string, raw map[string]any) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(fields))
	for _, f := range fields {
		v, ok := raw[f]
		if !ok {
			out[f] = model.NA(f)
			continue
		}
		s := coerceString(v)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "NA") ||
			strings.EqualFold(s, "N/A") || strings.EqualFold(s, "none") ||
			strings.EqualFold(s, model.NotAvailable) {
			out[f] = model.NA(f)
			continue
		}
		out[f] = model.FieldValue{
			Field:      f,
			Value:      Standardize(f, s),
			Provenance: model.ProvenanceTrialRecord,
		}
	}
	return out
}

// coerceString renders a raw JSON value as a field string. Arrays join with
// ", "; objects and null collapse to empty.
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := coerceString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Standardize applies the vocabulary rules for one canonical field.
// Multi-part values (combination partners, regimen MoA) are standardized
// per component around the "+" separator.
func Standardize(field, value string) string {
	switch field {
	case model.FieldPrimaryDrug:
		return promptlib.StandardizeDrugName(value)
	case model.FieldCombinationPartner, model.FieldExperimentalRegimen:
		return standardizeParts(value, promptlib.StandardizeDrugName)
	case model.FieldPrimaryDrugMoA, model.FieldMoAOfCombination, model.FieldMoAOfRegimen:
		return standardizeParts(value, promptlib.StandardizeMoA)
	case model.FieldPrimaryDrugROA:
		return promptlib.StandardizeROA(value)
	case model.FieldBiomarkerMutations, model.FieldBiomarkerWildtype:
		return promptlib.StandardizeBiomarkerList(value)
	case model.FieldMonoCombo:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "mono", "monotherapy":
			return "Mono"
		case "combo", "combination":
			return "Combo"
		}
		return value
	default:
		return value
	}
}

func standardizeParts(value string, fn func(string) string) string {
	if !strings.Contains(value, "+") {
		return fn(value)
	}
	parts := strings.Split(value, "+")
	for i, p := range parts {
		parts[i] = fn(strings.TrimSpace(p))
	}
	return strings.Join(parts, " + ")
}

// CleanJSON strips markdown code fences and extracts the largest balanced
// JSON object from text, repairing trailing truncation.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	if obj := largestJSONObject(text); obj != "" {
		text = obj
	} else {
		// No balanced object: likely truncated output. Take everything from
		// the first brace and let the repair pass close it.
		start := strings.Index(text, "{")
		if start < 0 {
			return ""
		}
		text = text[start:]
	}

	return repairTruncatedJSON(strings.TrimSpace(text))
}

// largestJSONObject returns the largest balanced top-level {...} block,
// tracking strings and escapes so braces inside values do not confuse the
// depth count.
func largestJSONObject(text string) string {
	var best string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
				}
			}
		}
	}
	return best
}

// repairTruncatedJSON closes unterminated strings and unclosed braces or
// brackets left by a response cut off at the token limit.
func repairTruncatedJSON(text string) string {
	if text == "" {
		return text
	}

	var stack []rune
	inString := false
	escaped := false
	for _, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, r)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		text += `"`
	}
	// Trim a dangling comma or colon before closing.
	trimmed := strings.TrimRight(text, " \n\t")
	if strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, ":") {
		text = strings.TrimRight(trimmed, ",:")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			text += "}"
		} else {
			text += "]"
		}
	}
	return text
}
