package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/resilience"
)

func baseResult() *model.AnalysisResult {
	fields := make(map[string]model.FieldValue)
	for _, f := range model.SchemaFields() {
		fields[f] = model.NA(f)
	}
	set := func(field, value string) {
		fields[field] = model.FieldValue{Field: field, Value: value, Provenance: model.ProvenanceTrialRecord}
	}
	set(model.FieldPrimaryDrug, "pembrolizumab")
	set(model.FieldPrimaryDrugMoA, "Anti-PD-1")
	set(model.FieldMonoCombo, "Mono")
	set(model.FieldCombinationPartner, model.NotAvailable)
	set(model.FieldMoAOfCombination, model.NotAvailable)
	set(model.FieldExperimentalRegimen, "pembrolizumab")
	set(model.FieldMoAOfRegimen, "Anti-PD-1")
	set(model.FieldLineOfTherapy, "1L")
	set(model.FieldIndication, "Bladder Cancer")
	set(model.FieldPrimaryDrugROA, "Intravenous (IV)")
	set(model.FieldSponsor, "Merck Sharp & Dohme")

	return &model.AnalysisResult{
		NCTID:  "NCT03778931",
		Model:  "claude-sonnet-4-5-20250929",
		Fields: fields,
	}
}

func TestExpand_SingleCohortSingleRow(t *testing.T) {
	group, err := Expand(baseResult())
	require.NoError(t, err)
	require.Len(t, group.Rows, 1)
	assert.Equal(t, "Mono", group.Rows[0].Value(model.FieldMonoCombo))
}

func TestExpand_MonoAndComboSplit(t *testing.T) {
	base := baseResult()
	base.Fields[model.FieldMonoCombo] = model.FieldValue{Field: model.FieldMonoCombo, Value: "Mono; Combo"}
	base.Fields[model.FieldCombinationPartner] = model.FieldValue{Field: model.FieldCombinationPartner, Value: "enfortumab vedotin"}
	base.Fields[model.FieldMoAOfCombination] = model.FieldValue{Field: model.FieldMoAOfCombination, Value: "Anti-Nectin-4"}
	base.Fields[model.FieldExperimentalRegimen] = model.FieldValue{Field: model.FieldExperimentalRegimen, Value: "pembrolizumab + enfortumab vedotin"}
	base.Fields[model.FieldMoAOfRegimen] = model.FieldValue{Field: model.FieldMoAOfRegimen, Value: "Anti-PD-1 + Anti-Nectin-4"}

	group, err := Expand(base)
	require.NoError(t, err)
	require.Len(t, group.Rows, 2)

	mono, combo := group.Rows[0], group.Rows[1]
	assert.Equal(t, "Mono", mono.Value(model.FieldMonoCombo))
	assert.Equal(t, model.NotAvailable, mono.Value(model.FieldCombinationPartner))
	assert.Equal(t, model.NotAvailable, mono.Value(model.FieldMoAOfCombination))
	assert.Equal(t, "pembrolizumab", mono.Value(model.FieldExperimentalRegimen))

	assert.Equal(t, "Combo", combo.Value(model.FieldMonoCombo))
	assert.Equal(t, "enfortumab vedotin", combo.Value(model.FieldCombinationPartner))
	assert.Equal(t, "pembrolizumab + enfortumab vedotin", combo.Value(model.FieldExperimentalRegimen))
}

func TestExpand_CrossProductWithLOT(t *testing.T) {
	base := baseResult()
	base.Fields[model.FieldMonoCombo] = model.FieldValue{Field: model.FieldMonoCombo, Value: "Mono; Combo"}
	base.Fields[model.FieldLineOfTherapy] = model.FieldValue{Field: model.FieldLineOfTherapy, Value: "1L; 2L+"}

	group, err := Expand(base)
	require.NoError(t, err)
	require.Len(t, group.Rows, 4)

	// Combination is the outer axis, line of therapy the inner one.
	assert.Equal(t, "Mono", group.Rows[0].Value(model.FieldMonoCombo))
	assert.Equal(t, "1L", group.Rows[0].Value(model.FieldLineOfTherapy))
	assert.Equal(t, "Mono", group.Rows[1].Value(model.FieldMonoCombo))
	assert.Equal(t, "2L+", group.Rows[1].Value(model.FieldLineOfTherapy))
	assert.Equal(t, "Combo", group.Rows[2].Value(model.FieldMonoCombo))
	assert.Equal(t, "1L", group.Rows[2].Value(model.FieldLineOfTherapy))
}

func TestExpand_SubgroupAndROASplits(t *testing.T) {
	base := baseResult()
	base.Fields[model.FieldIndication] = model.FieldValue{Field: model.FieldIndication, Value: "Bladder Cancer; Renal Cell Carcinoma"}
	base.Fields[model.FieldPrimaryDrugROA] = model.FieldValue{Field: model.FieldPrimaryDrugROA, Value: "Intravenous (IV), Subcutaneous (SC)"}

	group, err := Expand(base)
	require.NoError(t, err)
	require.Len(t, group.Rows, 4)

	assert.Equal(t, "Bladder Cancer", group.Rows[0].Value(model.FieldIndication))
	assert.Equal(t, "Intravenous (IV)", group.Rows[0].Value(model.FieldPrimaryDrugROA))
	assert.Equal(t, "Subcutaneous (SC)", group.Rows[1].Value(model.FieldPrimaryDrugROA))
	assert.Equal(t, "Renal Cell Carcinoma", group.Rows[2].Value(model.FieldIndication))
}

func TestExpand_DuplicateCohortsCollapse(t *testing.T) {
	base := baseResult()
	base.Fields[model.FieldLineOfTherapy] = model.FieldValue{Field: model.FieldLineOfTherapy, Value: "1L; 1L"}

	group, err := Expand(base)
	require.NoError(t, err)
	assert.Len(t, group.Rows, 1)
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	base := baseResult()
	base.Fields[model.FieldLineOfTherapy] = model.FieldValue{Field: model.FieldLineOfTherapy, Value: "1L; 2L+"}

	_, err := Expand(base)
	require.NoError(t, err)
	assert.Equal(t, "1L; 2L+", base.Value(model.FieldLineOfTherapy))
}

func TestCheckGroupInvariant_Violation(t *testing.T) {
	a := baseResult()
	b := baseResult()
	b.Fields[model.FieldSponsor] = model.FieldValue{Field: model.FieldSponsor, Value: "Different Sponsor"}

	group := &model.RowSplitGroup{NCTID: "NCT03778931", Rows: []model.AnalysisResult{*a, *b}}
	err := CheckGroupInvariant(group)
	require.Error(t, err)
	assert.True(t, resilience.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "sponsor")
}

func TestCheckGroupInvariant_ExemptFieldsMayVary(t *testing.T) {
	a := baseResult()
	b := baseResult()
	b.Fields[model.FieldLineOfTherapy] = model.FieldValue{Field: model.FieldLineOfTherapy, Value: "2L+"}
	b.Fields[model.FieldPatientPopulation] = model.FieldValue{Field: model.FieldPatientPopulation, Value: "previously treated cohort"}

	group := &model.RowSplitGroup{NCTID: "NCT03778931", Rows: []model.AnalysisResult{*a, *b}}
	assert.NoError(t, CheckGroupInvariant(group))
}
