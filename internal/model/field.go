package model

import "strings"

// NotAvailable is the explicit sentinel for a field with no derivable value.
// Fields are never null or empty-string; absence is always this sentinel.
const NotAvailable = "Not Available"

// Provenance tags where a field value came from.
type Provenance string

const (
	// ProvenanceTrialRecord marks values extracted or derived from the
	// registry record itself (directly or via the completion service).
	ProvenanceTrialRecord Provenance = "trial-record"
	// ProvenanceSecondaryReference marks values grounded on a secondary
	// source named by the completion service.
	ProvenanceSecondaryReference Provenance = "secondary-reference"
	// ProvenanceFallbackHeuristic marks values re-derived from structured
	// metadata after the completion path failed or scored too low.
	ProvenanceFallbackHeuristic Provenance = "fallback-heuristic"
)

// FieldValue is one canonical field with its standardized value. A FieldValue
// is never a raw null: a field with no derivable value carries the
// NotAvailable sentinel.
type FieldValue struct {
	Field      string     `json:"field"`
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
	// ParseErr marks a value that came out of a parse exception rather than
	// a clean extraction. Such fields count as errors, not valid fields.
	ParseErr bool `json:"parse_err,omitempty"`
}

// NA returns a sentinel FieldValue for the given field key.
func NA(field string) FieldValue {
	return FieldValue{Field: field, Value: NotAvailable, Provenance: ProvenanceTrialRecord}
}

// IsNA reports whether the value is the sentinel.
func (v FieldValue) IsNA() bool {
	return v.Value == NotAvailable
}

// FieldGroup identifies which extraction pass owns a canonical field.
type FieldGroup string

const (
	GroupDrug      FieldGroup = "drug"
	GroupClinical  FieldGroup = "clinical"
	GroupBiomarker FieldGroup = "biomarker"
	// GroupRecord fields are rule-derived from structured metadata and never
	// go through the completion service.
	GroupRecord FieldGroup = "record"
)

// Canonical field keys of the analysis-ready dataset. The order here is the
// column order of every exported row.
const (
	FieldPrimaryDrug         = "primary_drug"
	FieldPrimaryDrugMoA      = "primary_drug_moa"
	FieldPrimaryDrugTarget   = "primary_drug_target"
	FieldPrimaryDrugModality = "primary_drug_modality"
	FieldPrimaryDrugROA      = "primary_drug_roa"
	FieldMonoCombo           = "mono_combo"
	FieldCombinationPartner  = "combination_partner"
	FieldMoAOfCombination    = "moa_of_combination"
	FieldExperimentalRegimen = "experimental_regimen"
	FieldMoAOfRegimen        = "moa_of_experimental_regimen"

	FieldIndication        = "indication"
	FieldLineOfTherapy     = "line_of_therapy"
	FieldHistology         = "histology"
	FieldPriorTreatment    = "prior_treatment"
	FieldStageOfDisease    = "stage_of_disease"
	FieldPatientPopulation = "patient_population"
	FieldTrialName         = "trial_name"

	FieldBiomarkerMutations      = "biomarker_mutations"
	FieldBiomarkerStratification = "biomarker_stratification"
	FieldBiomarkerWildtype       = "biomarker_wildtype"

	FieldTrialID               = "trial_id"
	FieldTrialPhase            = "trial_phase"
	FieldTrialStatus           = "trial_status"
	FieldPatientEnrollment     = "patient_enrollment"
	FieldSponsor               = "sponsor"
	FieldSponsorType           = "sponsor_type"
	FieldCollaborator          = "collaborator"
	FieldDeveloper             = "developer"
	FieldStartDate             = "start_date"
	FieldPrimaryCompletionDate = "primary_completion_date"
	FieldStudyCompletionDate   = "study_completion_date"
	FieldPrimaryEndpoints      = "primary_endpoints"
	FieldSecondaryEndpoints    = "secondary_endpoints"
	FieldInclusionCriteria     = "inclusion_criteria"
	FieldExclusionCriteria     = "exclusion_criteria"
	FieldTrialCountries        = "trial_countries"
	FieldGeography             = "geography"
	FieldInvestigatorName      = "investigator_name"
	FieldInvestigatorDesig     = "investigator_designation"
	FieldInvestigatorQual      = "investigator_qualification"
	FieldInvestigatorLocation  = "investigator_location"
	FieldHistoryOfChanges      = "history_of_changes"
)

// schemaEntry binds a canonical field to its extraction group.
type schemaEntry struct {
	Key   string
	Group FieldGroup
}

// canonicalSchema is the ordered ARD column set.
var canonicalSchema = []schemaEntry{
	{FieldPrimaryDrug, GroupDrug},
	{FieldPrimaryDrugMoA, GroupDrug},
	{FieldPrimaryDrugTarget, GroupDrug},
	{FieldPrimaryDrugModality, GroupDrug},
	{FieldPrimaryDrugROA, GroupDrug},
	{FieldMonoCombo, GroupDrug},
	{FieldCombinationPartner, GroupDrug},
	{FieldMoAOfCombination, GroupDrug},
	{FieldExperimentalRegimen, GroupDrug},
	{FieldMoAOfRegimen, GroupDrug},
	{FieldIndication, GroupClinical},
	{FieldLineOfTherapy, GroupClinical},
	{FieldHistology, GroupClinical},
	{FieldPriorTreatment, GroupClinical},
	{FieldStageOfDisease, GroupClinical},
	{FieldPatientPopulation, GroupClinical},
	{FieldTrialName, GroupClinical},
	{FieldBiomarkerMutations, GroupBiomarker},
	{FieldBiomarkerStratification, GroupBiomarker},
	{FieldBiomarkerWildtype, GroupBiomarker},
	{FieldTrialID, GroupRecord},
	{FieldTrialPhase, GroupRecord},
	{FieldTrialStatus, GroupRecord},
	{FieldPatientEnrollment, GroupRecord},
	{FieldSponsor, GroupRecord},
	{FieldSponsorType, GroupRecord},
	{FieldCollaborator, GroupRecord},
	{FieldDeveloper, GroupRecord},
	{FieldStartDate, GroupRecord},
	{FieldPrimaryCompletionDate, GroupRecord},
	{FieldStudyCompletionDate, GroupRecord},
	{FieldPrimaryEndpoints, GroupRecord},
	{FieldSecondaryEndpoints, GroupRecord},
	{FieldInclusionCriteria, GroupRecord},
	{FieldExclusionCriteria, GroupRecord},
	{FieldTrialCountries, GroupRecord},
	{FieldGeography, GroupRecord},
	{FieldInvestigatorName, GroupRecord},
	{FieldInvestigatorDesig, GroupRecord},
	{FieldInvestigatorQual, GroupRecord},
	{FieldInvestigatorLocation, GroupRecord},
	{FieldHistoryOfChanges, GroupRecord},
}

// SchemaFields returns the canonical field keys in column order.
func SchemaFields() []string {
	out := make([]string, len(canonicalSchema))
	for i, e := range canonicalSchema {
		out[i] = e.Key
	}
	return out
}

// GroupFields returns the canonical field keys belonging to one extraction
// group, in column order.
func GroupFields(g FieldGroup) []string {
	var out []string
	for _, e := range canonicalSchema {
		if e.Group == g {
			out = append(out, e.Key)
		}
	}
	return out
}

// FieldGroupOf returns the extraction group for a canonical field key, or ""
// for unknown keys.
func FieldGroupOf(key string) FieldGroup {
	for _, e := range canonicalSchema {
		if e.Key == key {
			return e.Group
		}
	}
	return ""
}

// SchemaSize is the total number of canonical fields.
func SchemaSize() int {
	return len(canonicalSchema)
}

// SplitDimension identifies a row-splitting axis.
type SplitDimension string

const (
	SplitCombination SplitDimension = "combination"
	SplitLOT         SplitDimension = "line_of_therapy"
	SplitSubgroup    SplitDimension = "subgroup"
	SplitROA         SplitDimension = "route_of_administration"
)

// SplitDimensionFields maps each split axis to the canonical fields it is
// allowed to vary across rows of one group. patient_population is the one
// documented exception that may vary per split cohort regardless of axis.
var SplitDimensionFields = map[SplitDimension][]string{
	SplitCombination: {
		FieldMonoCombo, FieldCombinationPartner, FieldMoAOfCombination,
		FieldExperimentalRegimen, FieldMoAOfRegimen,
	},
	SplitLOT:      {FieldLineOfTherapy},
	SplitSubgroup: {FieldIndication, FieldHistology},
	SplitROA:      {FieldPrimaryDrugROA},
}

// NonSplitExempt reports whether a field may differ across rows of one
// RowSplitGroup without violating the group invariant.
func NonSplitExempt(field string) bool {
	if field == FieldPatientPopulation {
		return true
	}
	for _, fields := range SplitDimensionFields {
		for _, f := range fields {
			if f == field {
				return true
			}
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
