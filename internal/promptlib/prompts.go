// Package promptlib holds the prompt templates and deterministic
// standardization rules for trial analysis. Prompts are versioned: the
// version string is persisted with every analysis row so stored results can
// be traced back to the instructions that produced them.
package promptlib

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// Version identifies the current prompt revision.
const Version = "v1.2"

// SystemText is the shared system preamble for all extraction calls. It is
// identical across the three field groups so prompt caching pays off on the
// second and third call for the same trial.
const SystemText = `You are an expert clinical trial analyst. You analyze clinical trial records from ClinicalTrials.gov and extract structured data fields to build a standardized analysis-ready dataset. Return only a valid JSON object with the exact field names requested. Use "Not Available" for any field that cannot be determined from the record. Never invent values.`

const drugPrompt = `Analyze the following clinical trial information and extract drug-related fields.

CLINICAL TRIAL DATA:
%s

EXTRACTION RULES:

1. primary_drug:
   - Identify the primary investigational drug being tested, NOT active comparators
   - Exclude drugs used as active comparators (e.g., "vs chemo" or "Active Comparator" arms)
   - Do not treat background or standard-of-care agents as primary
   - Standardize to the generic drug name (e.g., "pembrolizumab" not "Keytruda")
   - Use the code name only when no generic name exists

2. primary_drug_moa:
   - Antibodies: "Anti-[Target]" (e.g., "Anti-PD-1", "Anti-Nectin-4")
   - Small molecules: "[Target] inhibitor" (e.g., "PARP inhibitor")
   - Bispecifics: "Anti-[Target] × [Target]" (e.g., "Anti-PD-1 × CTLA-4")
   - Agonists: "[Target] agonist"; antagonists: "[Target] antagonist"

3. primary_drug_target:
   - Molecular target only, no prefixes or suffixes (MoA "Anti-Nectin-4" → target "Nectin-4")

4. primary_drug_modality:
   - One of: ADC, Monoclonal antibody, Small molecule, CAR-T, T-cell engager,
     Cell therapy, Gene therapy, Radiopharmaceutical, Fusion protein
   - Drugs ending in -mab → "Monoclonal antibody"; -tinib → "Small molecule"

5. primary_drug_roa:
   - Standardized route: "Intravenous (IV)", "Subcutaneous (SC)", "Oral", "Intratumoral (IT)"
   - Do not infer the route unless clearly stated

6. mono_combo:
   - "Mono" when evaluated alone, "Combo" when combined with other drugs
   - Active comparators are not combination partners

7. combination_partner:
   - Combination partners separated by " + ", or "NA" for mono
   - Exclude active comparators; standardize drug names

8. moa_of_combination:
   - MoA of each partner separated by " + ", same format rules, "NA" for mono

9. experimental_regimen:
   - Mono: primary drug name. Combo: "Primary Drug + Partner"

10. moa_of_experimental_regimen:
    - Mono: primary MoA. Combo: "Primary MoA + Partner MoA"

Return a JSON object with exactly these keys: %s`

const clinicalPrompt = `Analyze the following clinical trial information and extract clinical fields.

CLINICAL TRIAL DATA:
%s

EXTRACTION RULES:

1. indication:
   - Primary disease indication (e.g., "Type 2 Diabetes (T2DM)", "Bladder Cancer")
   - If several diseases are studied, list the primary first, then the others

2. line_of_therapy:
   - "1L": treatment-naive, previously untreated, newly diagnosed
   - "2L": no more than 1 prior therapy
   - "2L+": at least 1 prior therapy, or refractory/intolerant to standard of care
   - "Adjuvant": after primary therapy (typically surgery)
   - "Neoadjuvant": before primary therapy
   - "Maintenance": ongoing treatment after initial successful therapy

3. histology:
   - Disease histology when stated (e.g., "Urothelial carcinoma", "Adenocarcinoma")
   - If several histologies are enrolled, separate with "; "

4. prior_treatment:
   - Therapies participants must have received; "treatment naive" when none required

5. stage_of_disease:
   - "Stage 4" for metastatic/advanced, "Stage 3/4" for locally advanced,
     "Stage 1/2" for early-stage; capture TNM staging when given

6. patient_population:
   - Comprehensive population description from the eligibility criteria,
     covering disease stage, mutations, and prior therapy requirements

7. trial_name:
   - Trial acronym when one exists, not internal study codes

Return a JSON object with exactly these keys: %s`

const biomarkerPrompt = `Analyze the following clinical trial information and extract biomarker fields.

CLINICAL TRIAL DATA:
%s

EXTRACTION RULES:

1. biomarker_mutations:
   - All biomarkers required or measured by the trial
   - Keywords: mutation, amplification, expression, fusion, deletion, gene/target positive
   - Standardize gene symbols: HER2 not ErbB2, PD-L1 not PDL1, keep punctuation (HLA-A*02:01)
   - Group related variants (dMMR/MSI-H); separate multiple biomarkers with ", "

2. biomarker_stratification:
   - Expression thresholds from the eligibility criteria
   - Capture exact levels: "PD-L1 CPS ≥10", "HER2 IHC 2+ or 3+", "TPS ≥1%%"

3. biomarker_wildtype:
   - Wildtype requirements: "KRAS wild-type", "EGFR T790M-negative", "ALK-negative"
   - Keywords: wild type, non-mutated, mutation-negative, genomically unaltered

Return a JSON object with exactly these keys: %s. Use "Not Available" when no biomarkers are mentioned.`

// BuildExtractionPrompt renders the user prompt for one field group of one
// trial. The returned key list is what the parser expects back.
func BuildExtractionPrompt(group model.FieldGroup, rec *model.TrialRecord) (string, error) {
	fields := model.GroupFields(group)
	if len(fields) == 0 {
		return "", fmt.Errorf("promptlib: no prompt for group %q", group)
	}
	keys := `"` + strings.Join(fields, `", "`) + `"`

	switch group {
	case model.GroupDrug:
		return fmt.Sprintf(drugPrompt, FormatDrugContext(rec), keys), nil
	case model.GroupClinical:
		return fmt.Sprintf(clinicalPrompt, FormatClinicalContext(rec), keys), nil
	case model.GroupBiomarker:
		return fmt.Sprintf(biomarkerPrompt, FormatBiomarkerContext(rec), keys), nil
	default:
		return "", fmt.Errorf("promptlib: no prompt for group %q", group)
	}
}

// FormatDrugContext renders the trial sections relevant to drug extraction:
// titles, summary, conditions, arms, and interventions.
func FormatDrugContext(rec *model.TrialRecord) string {
	var b strings.Builder
	writeField(&b, "BRIEF TITLE", rec.BriefTitle)
	writeField(&b, "OFFICIAL TITLE", rec.OfficialTitle)
	writeField(&b, "BRIEF SUMMARY", rec.BriefSummary)
	writeField(&b, "CONDITIONS", strings.Join(rec.Conditions, "; "))
	writeJSONField(&b, "ARM GROUPS", rec.Arms)
	writeJSONField(&b, "INTERVENTIONS", rec.Interventions)
	return b.String()
}

// FormatClinicalContext renders the sections relevant to clinical extraction,
// eligibility criteria being the main signal for line of therapy.
func FormatClinicalContext(rec *model.TrialRecord) string {
	var b strings.Builder
	writeField(&b, "BRIEF TITLE", rec.BriefTitle)
	writeField(&b, "OFFICIAL TITLE", rec.OfficialTitle)
	writeField(&b, "ACRONYM", rec.Acronym)
	writeField(&b, "BRIEF SUMMARY", rec.BriefSummary)
	writeField(&b, "CONDITIONS", strings.Join(rec.Conditions, "; "))
	writeField(&b, "ELIGIBILITY CRITERIA", rec.EligibilityCriteria)
	return b.String()
}

// FormatBiomarkerContext renders the sections relevant to biomarker
// extraction, including outcome measures which often name stratification
// thresholds.
func FormatBiomarkerContext(rec *model.TrialRecord) string {
	var b strings.Builder
	writeField(&b, "BRIEF TITLE", rec.BriefTitle)
	writeField(&b, "OFFICIAL TITLE", rec.OfficialTitle)
	writeField(&b, "BRIEF SUMMARY", rec.BriefSummary)
	writeField(&b, "ELIGIBILITY CRITERIA", rec.EligibilityCriteria)
	writeJSONField(&b, "PRIMARY OUTCOMES", rec.PrimaryOutcomes)
	writeJSONField(&b, "SECONDARY OUTCOMES", rec.SecondaryOutcomes)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func writeJSONField(b *strings.Builder, label string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || string(data) == "null" || string(data) == "[]" {
		return
	}
	b.WriteString(label + ":\n" + string(data) + "\n")
}
