package promptlib

import (
	"strconv"
	"strings"
	"time"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// ExtractRecordFields derives the record-group fields from structured
// registry metadata. These fields never go through the completion service;
// they are deterministic functions of the TrialRecord.
func ExtractRecordFields(rec *model.TrialRecord) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(model.GroupFields(model.GroupRecord)))
	set := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			out[field] = model.NA(field)
			return
		}
		out[field] = model.FieldValue{
			Field:      field,
			Value:      value,
			Provenance: model.ProvenanceTrialRecord,
		}
	}

	set(model.FieldTrialID, rec.NCTID)
	set(model.FieldTrialPhase, strings.Join(rec.Phases, ", "))
	set(model.FieldTrialStatus, rec.Status)
	if rec.Enrollment > 0 {
		set(model.FieldPatientEnrollment, strconv.Itoa(rec.Enrollment))
	} else {
		set(model.FieldPatientEnrollment, "")
	}

	set(model.FieldSponsor, rec.LeadSponsor)
	set(model.FieldSponsorType, ClassifySponsorType(rec.LeadSponsorClass))
	set(model.FieldCollaborator, strings.Join(rec.Collaborators, "; "))
	// The lead sponsor is the best available proxy for the developer; a
	// secondary-reference pass may refine it.
	set(model.FieldDeveloper, rec.LeadSponsor)

	set(model.FieldStartDate, FormatRegistryDate(rec.StartDate))
	set(model.FieldPrimaryCompletionDate, FormatRegistryDate(rec.PrimaryCompletionDate))
	set(model.FieldStudyCompletionDate, FormatRegistryDate(rec.CompletionDate))

	set(model.FieldPrimaryEndpoints, FormatEndpoints(rec.PrimaryOutcomes))
	set(model.FieldSecondaryEndpoints, FormatEndpoints(rec.SecondaryOutcomes))

	inclusion, exclusion := SplitEligibility(rec.EligibilityCriteria)
	set(model.FieldInclusionCriteria, inclusion)
	set(model.FieldExclusionCriteria, exclusion)

	set(model.FieldTrialCountries, strings.Join(rec.Countries, "; "))
	set(model.FieldGeography, ClassifyGeography(rec.Countries))

	if len(rec.Investigators) > 0 {
		inv := rec.Investigators[0]
		set(model.FieldInvestigatorName, inv.Name)
		set(model.FieldInvestigatorDesig, inv.Role)
		set(model.FieldInvestigatorLocation, inv.Affiliation)
	} else {
		set(model.FieldInvestigatorName, "")
		set(model.FieldInvestigatorDesig, "")
		set(model.FieldInvestigatorLocation, "")
	}
	// Registry contacts carry no credential data.
	set(model.FieldInvestigatorQual, "")

	if rec.LastUpdateDate != "" {
		set(model.FieldHistoryOfChanges, "Last update posted: "+rec.LastUpdateDate)
	} else {
		set(model.FieldHistoryOfChanges, "")
	}

	return out
}

// FormatRegistryDate converts registry dates (YYYY-MM-DD, sometimes YYYY-MM)
// to the dataset's YY-MM-DD convention. Unparseable input passes through.
func FormatRegistryDate(date string) string {
	if date == "" {
		return ""
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Format("06-01-02")
	}
	if t, err := time.Parse("2006-01", date); err == nil {
		return t.Format("06-01")
	}
	return date
}

// FormatEndpoints renders outcomes as "Measure (TimeFrame)" joined with "; ".
func FormatEndpoints(outcomes []model.Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.TimeFrame != "" {
			parts = append(parts, o.Measure+" ("+o.TimeFrame+")")
		} else {
			parts = append(parts, o.Measure)
		}
	}
	return strings.Join(parts, "; ")
}

// SplitEligibility splits a registry eligibility block into inclusion and
// exclusion sections on the "Exclusion Criteria:" marker.
func SplitEligibility(criteria string) (inclusion, exclusion string) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		return "", ""
	}
	const marker = "Exclusion Criteria:"
	idx := strings.Index(criteria, marker)
	if idx < 0 {
		inclusion = strings.TrimSpace(strings.TrimPrefix(criteria, "Inclusion Criteria:"))
		return inclusion, ""
	}
	inclusion = strings.TrimSpace(criteria[:idx])
	inclusion = strings.TrimSpace(strings.TrimPrefix(inclusion, "Inclusion Criteria:"))
	exclusion = strings.TrimSpace(criteria[idx+len(marker):])
	return inclusion, exclusion
}
