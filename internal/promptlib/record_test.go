package promptlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/clinical-trial/internal/model"
)

func sampleRecord() *model.TrialRecord {
	return &model.TrialRecord{
		NCTID:                 "NCT03778931",
		BriefTitle:            "Study of Enfortumab Vedotin in Urothelial Cancer",
		Phases:                []string{"PHASE3"},
		Status:                "RECRUITING",
		Enrollment:            600,
		LeadSponsor:           "Astellas Pharma Inc",
		LeadSponsorClass:      "INDUSTRY",
		Collaborators:         []string{"Seagen Inc."},
		StartDate:             "2019-03-14",
		PrimaryCompletionDate: "2024-06",
		CompletionDate:        "2025-01-30",
		Countries:             []string{"United States", "Germany", "Japan", "China"},
		EligibilityCriteria: "Inclusion Criteria:\n* Histologically confirmed urothelial carcinoma\n\n" +
			"Exclusion Criteria:\n* Prior enfortumab vedotin",
		PrimaryOutcomes: []model.Outcome{
			{Measure: "Overall survival", TimeFrame: "Up to 5 years"},
		},
		SecondaryOutcomes: []model.Outcome{
			{Measure: "Objective response rate", TimeFrame: "Up to 2 years"},
			{Measure: "Safety"},
		},
		Investigators: []model.Investigator{
			{Name: "Jane Roe, MD", Role: "PRINCIPAL_INVESTIGATOR", Affiliation: "MD Anderson Cancer Center"},
		},
		LastUpdateDate: "2025-02-10",
	}
}

func TestExtractRecordFields(t *testing.T) {
	fields := ExtractRecordFields(sampleRecord())

	require.Len(t, fields, len(model.GroupFields(model.GroupRecord)))

	assert.Equal(t, "NCT03778931", fields[model.FieldTrialID].Value)
	assert.Equal(t, "PHASE3", fields[model.FieldTrialPhase].Value)
	assert.Equal(t, "600", fields[model.FieldPatientEnrollment].Value)
	assert.Equal(t, "Industry Only", fields[model.FieldSponsorType].Value)
	assert.Equal(t, "Seagen Inc.", fields[model.FieldCollaborator].Value)
	assert.Equal(t, "19-03-14", fields[model.FieldStartDate].Value)
	assert.Equal(t, "24-06", fields[model.FieldPrimaryCompletionDate].Value)
	assert.Equal(t, "Global", fields[model.FieldGeography].Value)
	assert.Equal(t, "Overall survival (Up to 5 years)", fields[model.FieldPrimaryEndpoints].Value)
	assert.Equal(t, "Objective response rate (Up to 2 years); Safety", fields[model.FieldSecondaryEndpoints].Value)
	assert.Equal(t, "Jane Roe, MD", fields[model.FieldInvestigatorName].Value)
	assert.Equal(t, model.NotAvailable, fields[model.FieldInvestigatorQual].Value)
	assert.Equal(t, "Last update posted: 2025-02-10", fields[model.FieldHistoryOfChanges].Value)

	for key, fv := range fields {
		assert.NotEmpty(t, fv.Value, "field %s must carry the sentinel, not empty", key)
		assert.Equal(t, model.ProvenanceTrialRecord, fv.Provenance)
	}
}

func TestExtractRecordFields_EmptyRecord(t *testing.T) {
	fields := ExtractRecordFields(&model.TrialRecord{NCTID: "NCT00000001"})

	assert.Equal(t, "NCT00000001", fields[model.FieldTrialID].Value)
	assert.Equal(t, model.NotAvailable, fields[model.FieldSponsor].Value)
	assert.Equal(t, model.NotAvailable, fields[model.FieldPatientEnrollment].Value)
	assert.Equal(t, model.NotAvailable, fields[model.FieldGeography].Value)
	assert.Equal(t, model.NotAvailable, fields[model.FieldInvestigatorName].Value)
}

func TestFormatRegistryDate(t *testing.T) {
	assert.Equal(t, "19-03-14", FormatRegistryDate("2019-03-14"))
	assert.Equal(t, "24-06", FormatRegistryDate("2024-06"))
	assert.Equal(t, "", FormatRegistryDate(""))
	assert.Equal(t, "March 2019", FormatRegistryDate("March 2019"))
}

func TestSplitEligibility(t *testing.T) {
	inc, exc := SplitEligibility("Inclusion Criteria:\n* Age ≥18\n\nExclusion Criteria:\n* Prior therapy")
	assert.Equal(t, "* Age ≥18", inc)
	assert.Equal(t, "* Prior therapy", exc)

	inc, exc = SplitEligibility("Inclusion Criteria:\n* Age ≥18")
	assert.Equal(t, "* Age ≥18", inc)
	assert.Empty(t, exc)

	inc, exc = SplitEligibility("")
	assert.Empty(t, inc)
	assert.Empty(t, exc)
}
