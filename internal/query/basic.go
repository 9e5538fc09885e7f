package query

import (
	"regexp"
	"strings"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
)

// indicationKeywords maps query phrasings to dataset indication values.
// Longer phrases are matched first so "bladder cancer" wins over "cancer".
var indicationKeywords = []struct {
	keyword    string
	indication string
}{
	{"urothelial", "Urothelial Carcinoma"},
	{"bladder cancer", "Bladder Cancer"},
	{"breast cancer", "Breast Cancer"},
	{"lung cancer", "Lung Cancer"},
	{"nsclc", "Non-Small Cell Lung Cancer"},
	{"colorectal", "Colorectal Cancer"},
	{"melanoma", "Melanoma"},
	{"prostate cancer", "Prostate Cancer"},
	{"pancreatic", "Pancreatic Cancer"},
	{"ovarian", "Ovarian Cancer"},
	{"gastric", "Gastric Cancer"},
	{"multiple myeloma", "Multiple Myeloma"},
	{"lymphoma", "Lymphoma"},
	{"leukemia", "Leukemia"},
	{"diabetes", "Diabetes"},
	{"obesity", "Obesity"},
	{"alzheimer", "Alzheimer's Disease"},
	{"parkinson", "Parkinson's Disease"},
}

var phasePattern = regexp.MustCompile(`(?i)phase\s*(1|2|3|4|i{1,3}|iv)\b`)

var statusKeywords = []struct {
	keyword string
	status  string
}{
	{"recruiting", "RECRUITING"},
	{"completed", "COMPLETED"},
	{"terminated", "TERMINATED"},
	{"active", "ACTIVE_NOT_RECRUITING"},
}

// basicAnalyze is the deterministic keyword floor. It never fails and never
// calls out; confidence reflects how many filters matched.
func (a *Analyzer) basicAnalyze(queryText string) *model.QueryFilterSet {
	lower := strings.ToLower(queryText)
	filters := make(map[string]string)

	for mention, generic := range promptlib.DrugMentions() {
		if strings.Contains(lower, mention) {
			// Keep the longest drug mention so "enfortumab vedotin" beats a
			// shorter overlapping match.
			if cur, ok := filters[model.FieldPrimaryDrug]; !ok || len(generic) > len(cur) {
				filters[model.FieldPrimaryDrug] = generic
			}
		}
	}
	for _, ik := range indicationKeywords {
		if strings.Contains(lower, ik.keyword) {
			filters[model.FieldIndication] = ik.indication
			break
		}
	}
	if m := phasePattern.FindStringSubmatch(queryText); m != nil {
		filters[model.FieldTrialPhase] = "PHASE" + romanToArabic(strings.ToLower(m[1]))
	}
	for _, sk := range statusKeywords {
		if strings.Contains(lower, sk.keyword) {
			filters[model.FieldTrialStatus] = sk.status
			break
		}
	}
	if lot := promptlib.ClassifyLineOfTherapy(queryText); lot != model.NotAvailable {
		filters[model.FieldLineOfTherapy] = lot
	}
	if found := promptlib.DetectBiomarkers(queryText); len(found) > 0 {
		filters[model.FieldBiomarkerMutations] = found[0]
	}

	confidence := 0.2
	if len(filters) > 0 {
		confidence = 0.5 + 0.15*float64(len(filters))
		if confidence > 0.9 {
			confidence = 0.9
		}
	}

	return &model.QueryFilterSet{
		Query:          queryText,
		Filters:        filters,
		QueryIntent:    "keyword search over stored analysis rows",
		SearchStrategy: "exact filter match on extracted keywords",
		Confidence:     confidence,
		Tier:           model.TierBasic,
	}
}

func romanToArabic(numeral string) string {
	switch numeral {
	case "i":
		return "1"
	case "ii":
		return "2"
	case "iii":
		return "3"
	case "iv":
		return "4"
	default:
		return numeral
	}
}
