package promptlib

import (
	"strings"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// Line-of-therapy keyword tables, checked in order. Surgery-anchored settings
// are checked before line numbers because "previously untreated" appears in
// many neoadjuvant eligibility texts.
var lotRules = []struct {
	label    string
	keywords []string
}{
	{"Neoadjuvant", []string{
		"neoadjuvant", "neo-adjuvant", "prior to surgery", "before surgery",
		"before surgical resection", "preoperative",
	}},
	{"Adjuvant", []string{
		"adjuvant", "after surgery", "following surgical resection",
		"after complete resection", "postoperative", "following primary therapy",
	}},
	{"Maintenance", []string{
		"maintenance therapy", "maintenance treatment", "maintenance setting",
		"as maintenance",
	}},
	// 2L+ runs before 2L: "≥1 prior line" contains the 2L phrase
	// "1 prior line" and must win.
	{"2L+", []string{
		"refractory", "relapsed", "progressed on", "progressed after",
		"failed prior", "at least one prior", "at least 1 prior", "≥1 prior",
		"≥ 1 prior", ">=1 prior", "intolerant to", "exhausted",
		"previously treated",
	}},
	{"2L", []string{
		"no more than 1 prior", "no more than one prior", "second-line",
		"second line", "one prior line", "1 prior line",
	}},
	{"1L", []string{
		"treatment-naive", "treatment naive", "previously untreated",
		"newly diagnosed", "first-line", "first line", "no prior systemic",
	}},
}

// ClassifyLineOfTherapy derives a line-of-therapy label from free text
// (eligibility criteria plus summary). Returns NotAvailable when no keyword
// matches.
func ClassifyLineOfTherapy(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range lotRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return model.NotAvailable
}

// ClassifySponsorType maps the registry lead-sponsor class onto the dataset
// taxonomy: INDUSTRY is industry-only, OTHER (universities, hospitals,
// non-profits) is academic-only, and the remaining classes (NIH, FED,
// NETWORK) are treated as collaborations.
func ClassifySponsorType(leadSponsorClass string) string {
	switch strings.ToUpper(strings.TrimSpace(leadSponsorClass)) {
	case "INDUSTRY":
		return "Industry Only"
	case "OTHER":
		return "Academic Only"
	case "":
		return model.NotAvailable
	default:
		return "Industry-Academic Collaboration"
	}
}

// euCountries covers the EU members that appear in registry location data.
var euCountries = map[string]bool{
	"Austria": true, "Belgium": true, "Bulgaria": true, "Croatia": true,
	"Cyprus": true, "Czechia": true, "Czech Republic": true, "Denmark": true,
	"Estonia": true, "Finland": true, "France": true, "Germany": true,
	"Greece": true, "Hungary": true, "Ireland": true, "Italy": true,
	"Latvia": true, "Lithuania": true, "Luxembourg": true, "Malta": true,
	"Netherlands": true, "Poland": true, "Portugal": true, "Romania": true,
	"Slovakia": true, "Slovenia": true, "Spain": true, "Sweden": true,
}

// ClassifyGeography buckets a trial's site countries:
//   - "Global": sites in the US, the EU, Japan, and China
//   - "China Only": sites only in China (Taiwan included)
//   - "International": everything else with at least one site
func ClassifyGeography(countries []string) string {
	if len(countries) == 0 {
		return model.NotAvailable
	}

	var hasUS, hasEU, hasJapan, hasChina bool
	onlyChina := true
	for _, c := range countries {
		c = strings.TrimSpace(c)
		switch c {
		case "United States":
			hasUS = true
		case "Japan":
			hasJapan = true
		case "China":
			hasChina = true
		}
		if euCountries[c] {
			hasEU = true
		}
		if c != "China" && c != "Taiwan" {
			onlyChina = false
		}
	}

	switch {
	case onlyChina:
		return "China Only"
	case hasUS && hasEU && hasJapan && hasChina:
		return "Global"
	default:
		return "International"
	}
}

// ClassifyStageOfDisease derives a disease stage from trial text. TNM or
// numbered staging is left to the completion path; this covers the keyword
// buckets only.
func ClassifyStageOfDisease(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "locally advanced"):
		return "Stage 3/4"
	case strings.Contains(lower, "metastatic") || strings.Contains(lower, "advanced cancer"):
		return "Stage 4"
	case strings.Contains(lower, "early-stage") || strings.Contains(lower, "early stage"):
		return "Stage 1/2"
	default:
		return model.NotAvailable
	}
}

// knownBiomarkers is the detection list for the heuristic biomarker pass, in
// priority order. Longer, more specific symbols come first so "PD-L1" wins
// over "PD-1" in the same text.
var knownBiomarkers = []string{
	"HLA-A*02:01", "MSI-H/dMMR", "dMMR", "MSI-H", "PD-L1", "PD-1", "HER2",
	"EGFR", "PIK3CA", "TROP2", "MAGE-A4", "ALK", "ROS1", "BRAF", "RET",
	"MET", "KRAS", "Nectin-4", "TP53", "5T4", "MTAP", "CD39", "CD103",
	"CD8+", "B7-H3", "CTLA-4", "FGFR3", "IDH1", "NTRK", "BRCA1", "BRCA2",
}

// DetectBiomarkers scans free text for known biomarker symbols and returns
// the standardized symbols in detection order, deduplicated.
func DetectBiomarkers(text string) []string {
	if text == "" {
		return nil
	}
	upper := strings.ToUpper(text)
	var found []string
	seen := make(map[string]bool)
	for _, bm := range knownBiomarkers {
		if seen[bm] {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(bm)) {
			// PD-1 is a substring of PD-L1; skip it when the longer form
			// already matched.
			if bm == "PD-1" && seen["PD-L1"] {
				continue
			}
			seen[bm] = true
			found = append(found, bm)
		}
	}
	return found
}

// Modality suffix rules from the drug-naming conventions.
var modalitySuffixes = []struct {
	suffix   string
	modality string
}{
	{"-mab", "Monoclonal antibody"},
	{"mab", "Monoclonal antibody"},
	{"tinib", "Small molecule"},
	{"ciclib", "Small molecule"},
	{"parib", "Small molecule"},
	{"lisib", "Small molecule"},
	{"degib", "Small molecule"},
	{"cel", "Cell therapy"},
	{"gene", "Gene therapy"},
}

// ClassifyModality derives a drug modality from naming conventions and
// description keywords. Returns NotAvailable when nothing matches.
func ClassifyModality(name, description string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	desc := strings.ToLower(description)

	switch {
	case strings.Contains(desc, "antibody-drug conjugate") || strings.Contains(desc, "antibody drug conjugate"):
		return "ADC"
	case strings.Contains(lower, "vedotin") || strings.Contains(lower, "deruxtecan") ||
		strings.Contains(lower, "govitecan") || strings.Contains(lower, "emtansine"):
		return "ADC"
	case strings.Contains(desc, "chimeric antigen receptor") || strings.Contains(lower, "car-t"):
		return "CAR-T"
	case strings.Contains(desc, "t-cell redirecting") || strings.Contains(desc, "t-cell engager") ||
		strings.Contains(desc, "bispecific t cell engager"):
		return "T-cell engager"
	case strings.Contains(desc, "radiolabeled") || strings.Contains(desc, "radioligand"):
		return "Radiopharmaceutical"
	case strings.Contains(desc, "fusion protein"):
		return "Fusion protein"
	}

	for _, rule := range modalitySuffixes {
		if strings.HasSuffix(lower, rule.suffix) {
			return rule.modality
		}
	}
	return model.NotAvailable
}

// IsActiveComparatorArm reports whether an arm must be excluded from primary
// drug and combination analysis.
func IsActiveComparatorArm(arm model.Arm) bool {
	switch arm.Type {
	case model.ArmActiveComparator, model.ArmPlacebo, model.ArmNoIntervention:
		return true
	}
	return strings.Contains(strings.ToLower(arm.Label), "comparator")
}
