package parser

import (
	"strings"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/promptlib"
)

// HeuristicFields derives a field group directly from the structured trial
// record when the completion path produced nothing usable. Values carry
// fallback-heuristic provenance; fields with no structured signal get the
// sentinel with ParseErr set so the scorer counts them as errors, not as
// clean absences.
func HeuristicFields(group model.FieldGroup, rec *model.TrialRecord) map[string]model.FieldValue {
	switch group {
	case model.GroupDrug:
		return heuristicDrugFields(rec)
	case model.GroupClinical:
		return heuristicClinicalFields(rec)
	case model.GroupBiomarker:
		return heuristicBiomarkerFields(rec)
	default:
		out := make(map[string]model.FieldValue)
		for _, f := range model.GroupFields(group) {
			out[f] = errNA(f)
		}
		return out
	}
}

func heuristicDrugFields(rec *model.TrialRecord) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(model.GroupFields(model.GroupDrug)))
	for _, f := range model.GroupFields(model.GroupDrug) {
		out[f] = errNA(f)
	}

	drugs := experimentalDrugs(rec)
	if len(drugs) == 0 {
		return out
	}

	primary := promptlib.StandardizeDrugName(drugs[0].Name)
	setHeuristic(out, model.FieldPrimaryDrug, primary)
	setHeuristic(out, model.FieldPrimaryDrugModality,
		promptlib.ClassifyModality(drugs[0].Name, drugs[0].Description))
	setHeuristic(out, model.FieldPrimaryDrugROA,
		detectROA(drugs[0].Description))

	if len(drugs) == 1 {
		setHeuristic(out, model.FieldMonoCombo, "Mono")
		// A single-drug trial has no combination partner; that is a clean
		// absence, not a parse failure.
		out[model.FieldCombinationPartner] = model.NA(model.FieldCombinationPartner)
		out[model.FieldMoAOfCombination] = model.NA(model.FieldMoAOfCombination)
		setHeuristic(out, model.FieldExperimentalRegimen, primary)
		return out
	}

	partners := make([]string, 0, len(drugs)-1)
	for _, d := range drugs[1:] {
		partners = append(partners, promptlib.StandardizeDrugName(d.Name))
	}
	setHeuristic(out, model.FieldMonoCombo, "Combo")
	setHeuristic(out, model.FieldCombinationPartner, strings.Join(partners, " + "))
	setHeuristic(out, model.FieldExperimentalRegimen,
		primary+" + "+strings.Join(partners, " + "))
	return out
}

func heuristicClinicalFields(rec *model.TrialRecord) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(model.GroupFields(model.GroupClinical)))
	for _, f := range model.GroupFields(model.GroupClinical) {
		out[f] = errNA(f)
	}

	if len(rec.Conditions) > 0 {
		setHeuristic(out, model.FieldIndication, strings.Join(rec.Conditions, " + "))
	}

	text := rec.EligibilityCriteria + "\n" + rec.BriefSummary + "\n" + rec.BriefTitle
	if lot := promptlib.ClassifyLineOfTherapy(text); lot != model.NotAvailable {
		setHeuristic(out, model.FieldLineOfTherapy, lot)
		if lot == "1L" {
			setHeuristic(out, model.FieldPriorTreatment, "treatment naive")
		}
	}
	if stage := promptlib.ClassifyStageOfDisease(text); stage != model.NotAvailable {
		setHeuristic(out, model.FieldStageOfDisease, stage)
	}
	if rec.Acronym != "" {
		setHeuristic(out, model.FieldTrialName, rec.Acronym)
	}
	if len(rec.Conditions) > 0 {
		population := "Patients with " + strings.Join(rec.Conditions, ", ")
		if stage := out[model.FieldStageOfDisease]; !stage.IsNA() {
			population += " (" + stage.Value + ")"
		}
		setHeuristic(out, model.FieldPatientPopulation, population)
	}
	return out
}

func heuristicBiomarkerFields(rec *model.TrialRecord) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(model.GroupFields(model.GroupBiomarker)))
	for _, f := range model.GroupFields(model.GroupBiomarker) {
		out[f] = errNA(f)
	}

	text := rec.BriefTitle + "\n" + rec.OfficialTitle + "\n" + rec.EligibilityCriteria
	if found := promptlib.DetectBiomarkers(text); len(found) > 0 {
		setHeuristic(out, model.FieldBiomarkerMutations, strings.Join(found, ", "))
	}
	return out
}

// experimentalDrugs returns the drug and biological interventions attached to
// experimental arms, in registry order. Comparator-arm interventions are
// excluded.
func experimentalDrugs(rec *model.TrialRecord) []model.Intervention {
	comparatorArms := make(map[string]bool)
	for _, a := range rec.Arms {
		if promptlib.IsActiveComparatorArm(a) {
			comparatorArms[strings.ToLower(a.Label)] = true
		}
	}

	var out []model.Intervention
	for _, iv := range rec.Interventions {
		switch strings.ToUpper(iv.Type) {
		case "DRUG", "BIOLOGICAL":
		default:
			continue
		}
		if len(iv.ArmLabels) > 0 && allComparator(iv.ArmLabels, comparatorArms) {
			continue
		}
		out = append(out, iv)
	}
	return out
}

func allComparator(labels []string, comparatorArms map[string]bool) bool {
	for _, l := range labels {
		if !comparatorArms[strings.ToLower(l)] {
			return false
		}
	}
	return true
}

// detectROA scans an intervention description for route keywords.
func detectROA(description string) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "intravenous") || strings.Contains(lower, " iv "):
		return "Intravenous (IV)"
	case strings.Contains(lower, "subcutaneous"):
		return "Subcutaneous (SC)"
	case strings.Contains(lower, "oral") || strings.Contains(lower, "by mouth"):
		return "Oral"
	case strings.Contains(lower, "intratumoral"):
		return "Intratumoral (IT)"
	default:
		return model.NotAvailable
	}
}

func setHeuristic(out map[string]model.FieldValue, field, value string) {
	if value == "" || value == model.NotAvailable {
		return
	}
	out[field] = model.FieldValue{
		Field:      field,
		Value:      value,
		Provenance: model.ProvenanceFallbackHeuristic,
	}
}

// errNA is a sentinel that records a parse failure for the field.
func errNA(field string) model.FieldValue {
	fv := model.NA(field)
	fv.ParseErr = true
	return fv
}
