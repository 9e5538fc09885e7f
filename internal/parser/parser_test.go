package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/clinical-trial/internal/model"
)

func drugJSON() string {
	return `{
		"primary_drug": "Keytruda",
		"primary_drug_moa": "Anti-PD-1",
		"primary_drug_target": "PD-1",
		"primary_drug_modality": "Monoclonal antibody",
		"primary_drug_roa": "IV",
		"mono_combo": "combo",
		"combination_partner": "Padcev",
		"moa_of_combination": "Anti-Nectin-4",
		"experimental_regimen": "Keytruda + Padcev",
		"moa_of_experimental_regimen": "Anti-PD-1 + Anti-Nectin-4"
	}`
}

func TestParseGroup_StrictJSON(t *testing.T) {
	res := ParseGroup(drugJSON(), model.GroupDrug, &model.TrialRecord{})

	require.Equal(t, ParsedOK, res.Status)
	assert.Equal(t, "pembrolizumab", res.Fields[model.FieldPrimaryDrug].Value)
	assert.Equal(t, "Intravenous (IV)", res.Fields[model.FieldPrimaryDrugROA].Value)
	assert.Equal(t, "Combo", res.Fields[model.FieldMonoCombo].Value)
	assert.Equal(t, "enfortumab vedotin", res.Fields[model.FieldCombinationPartner].Value)
	assert.Equal(t, "pembrolizumab + enfortumab vedotin", res.Fields[model.FieldExperimentalRegimen].Value)
	assert.Equal(t, model.ProvenanceTrialRecord, res.Fields[model.FieldPrimaryDrug].Provenance)
}

func TestParseGroup_LenientFencedJSON(t *testing.T) {
	text := "Here is the analysis:\n```json\n" + drugJSON() + "\n```\nLet me know if you need more."
	res := ParseGroup(text, model.GroupDrug, &model.TrialRecord{})

	require.Equal(t, ParsedOK, res.Status)
	assert.Equal(t, "pembrolizumab", res.Fields[model.FieldPrimaryDrug].Value)
}

func TestParseGroup_LenientProseWrappedJSON(t *testing.T) {
	text := `Based on my analysis of the record, ` + drugJSON() + ` — these fields follow the rules.`
	res := ParseGroup(text, model.GroupDrug, &model.TrialRecord{})

	require.Equal(t, ParsedOK, res.Status)
	assert.Equal(t, "pembrolizumab", res.Fields[model.FieldPrimaryDrug].Value)
}

func TestParseGroup_MissingFieldsGetSentinel(t *testing.T) {
	res := ParseGroup(`{"indication": "Bladder Cancer"}`, model.GroupClinical, &model.TrialRecord{})

	require.Equal(t, ParsedOK, res.Status)
	assert.Equal(t, "Bladder Cancer", res.Fields[model.FieldIndication].Value)
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldHistology].Value)
	assert.False(t, res.Fields[model.FieldHistology].ParseErr)
	assert.Len(t, res.Fields, len(model.GroupFields(model.GroupClinical)))
}

func TestParseGroup_NullBecomesSentinel(t *testing.T) {
	res := ParseGroup(`{"histology": null, "indication": "N/A", "trial_name": "none"}`,
		model.GroupClinical, &model.TrialRecord{})

	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldHistology].Value)
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldIndication].Value)
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldTrialName].Value)
}

func TestParseGroup_RegexStage(t *testing.T) {
	// Broken JSON (unquoted key early on) that still contains parseable pairs.
	text := `{broken: yes,, "primary_drug": "Keytruda", "mono_combo": "Mono" trailing garbage`
	res := ParseGroup(text, model.GroupDrug, &model.TrialRecord{})

	require.Equal(t, ParsedPartial, res.Status)
	assert.Equal(t, "pembrolizumab", res.Fields[model.FieldPrimaryDrug].Value)
	assert.Equal(t, "Mono", res.Fields[model.FieldMonoCombo].Value)
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldPrimaryDrugMoA].Value)
}

func TestParseGroup_HeuristicStage(t *testing.T) {
	rec := &model.TrialRecord{
		Conditions:          []string{"Urothelial Carcinoma"},
		EligibilityCriteria: "Inclusion: previously untreated patients with metastatic disease",
		Arms: []model.Arm{
			{Label: "Arm A", Type: model.ArmExperimental},
			{Label: "Chemo", Type: model.ArmActiveComparator},
		},
		Interventions: []model.Intervention{
			{Type: "DRUG", Name: "Enfortumab Vedotin", ArmLabels: []string{"Arm A"}},
			{Type: "DRUG", Name: "Cisplatin", ArmLabels: []string{"Chemo"}},
		},
	}

	res := ParseGroup("I could not produce the analysis.", model.GroupDrug, rec)
	require.Equal(t, ParsedFail, res.Status)
	assert.Equal(t, "Enfortumab Vedotin", res.Fields[model.FieldPrimaryDrug].Value)
	assert.Equal(t, "ADC", res.Fields[model.FieldPrimaryDrugModality].Value)
	assert.Equal(t, "Mono", res.Fields[model.FieldMonoCombo].Value)
	assert.Equal(t, model.ProvenanceFallbackHeuristic, res.Fields[model.FieldPrimaryDrug].Provenance)
	// Underivable fields count as parse errors.
	assert.True(t, res.Fields[model.FieldPrimaryDrugMoA].ParseErr)
	// A single drug means no combination partner. That is a clean absence,
	// not a parse error, so the scorer counts it as NA rather than valid.
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldCombinationPartner].Value)
	assert.False(t, res.Fields[model.FieldCombinationPartner].ParseErr)
	assert.Equal(t, model.NotAvailable, res.Fields[model.FieldMoAOfCombination].Value)
	assert.False(t, res.Fields[model.FieldMoAOfCombination].ParseErr)

	clin := ParseGroup("", model.GroupClinical, rec)
	require.Equal(t, ParsedFail, clin.Status)
	assert.Equal(t, "Urothelial Carcinoma", clin.Fields[model.FieldIndication].Value)
	assert.Equal(t, "1L", clin.Fields[model.FieldLineOfTherapy].Value)
	assert.Equal(t, "Stage 4", clin.Fields[model.FieldStageOfDisease].Value)
	assert.Equal(t, "treatment naive", clin.Fields[model.FieldPriorTreatment].Value)
}

func TestParseGroup_HeuristicBiomarkers(t *testing.T) {
	rec := &model.TrialRecord{
		BriefTitle:          "Study in HER2-positive breast cancer",
		EligibilityCriteria: "PD-L1 CPS >= 10 required",
	}

	res := ParseGroup("garbage", model.GroupBiomarker, rec)
	require.Equal(t, ParsedFail, res.Status)
	assert.Contains(t, res.Fields[model.FieldBiomarkerMutations].Value, "HER2")
	assert.Contains(t, res.Fields[model.FieldBiomarkerMutations].Value, "PD-L1")
}

func TestCleanJSON_TruncationRepair(t *testing.T) {
	cleaned := CleanJSON(`{"indication": "Bladder Cancer", "histology": "Urothelial`)
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &raw))
	assert.Equal(t, "Bladder Cancer", raw["indication"])
}

func TestLargestJSONObject_PicksOuterBlock(t *testing.T) {
	text := `note {"a": 1} and {"b": {"c": 2}, "d": "x{y}"} end`
	assert.Equal(t, `{"b": {"c": 2}, "d": "x{y}"}`, largestJSONObject(text))
}

func TestStandardize_MoAParts(t *testing.T) {
	assert.Equal(t, "Anti-PD-1 + PARP inhibitor",
		Standardize(model.FieldMoAOfRegimen, "anti-PD1 + PARPi"))
}
