// Package expand turns one merged analysis result into its final row set.
// A trial that evaluates both monotherapy and combination arms, several
// treatment lines, multiple routes, or multiple indications is profiled as
// one row per cohort, with every non-split field byte-identical across the
// group.
package expand

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ishankgp/clinical-trial/internal/model"
	"github.com/ishankgp/clinical-trial/internal/resilience"
)

// maxRowsBeforeReview is the row count above which a group is flagged for
// manual review. Legitimate trials rarely profile more than a dozen cohorts;
// more usually means a splitting artifact.
const maxRowsBeforeReview = 12

// comboVariant is one value of the combination split axis: the five
// combination-dependent fields that change together.
type comboVariant struct {
	monoCombo  string
	partner    string
	partnerMoA string
	regimen    string
	regimenMoA string
}

// Expand derives the full row set for one merged result. The input is not
// mutated; every returned row is a deep copy. Returns an IntegrityError when
// the produced rows disagree on a non-split field.
func Expand(base *model.AnalysisResult) (*model.RowSplitGroup, error) {
	combos := comboVariants(base)
	lots := splitValues(base.Value(model.FieldLineOfTherapy))
	subgroups := splitValues(base.Value(model.FieldIndication))
	roas := splitValues(base.Value(model.FieldPrimaryDrugROA))

	// Cross product in fixed axis order: combination, then line of therapy,
	// then subgroup, then route. Duplicate cohorts collapse.
	var rows []model.AnalysisResult
	seen := make(map[string]bool)
	for _, cv := range combos {
		for _, lot := range lots {
			for _, sub := range subgroups {
				for _, roa := range roas {
					key := cv.monoCombo + "\x00" + cv.partner + "\x00" + lot + "\x00" + sub + "\x00" + roa
					if seen[key] {
						continue
					}
					seen[key] = true
					rows = append(rows, buildRow(base, cv, lot, sub, roa))
				}
			}
		}
	}

	group := &model.RowSplitGroup{
		NCTID: base.NCTID,
		Model: base.Model,
		Rows:  rows,
	}
	if err := CheckGroupInvariant(group); err != nil {
		return nil, err
	}

	if len(rows) > maxRowsBeforeReview {
		zap.L().Warn("row expansion produced unusually many cohorts",
			zap.String("nct_id", base.NCTID),
			zap.Int("rows", len(rows)))
	}
	return group, nil
}

// comboVariants returns the combination-axis values. When the extraction
// reports both mono and combo evaluation, the mono row gets NA partners and
// a regimen collapsed to the primary drug.
func comboVariants(base *model.AnalysisResult) []comboVariant {
	mc := base.Value(model.FieldMonoCombo)
	lower := strings.ToLower(mc)

	asExtracted := comboVariant{
		monoCombo:  mc,
		partner:    base.Value(model.FieldCombinationPartner),
		partnerMoA: base.Value(model.FieldMoAOfCombination),
		regimen:    base.Value(model.FieldExperimentalRegimen),
		regimenMoA: base.Value(model.FieldMoAOfRegimen),
	}

	if strings.Contains(lower, "mono") && strings.Contains(lower, "combo") {
		mono := comboVariant{
			monoCombo:  "Mono",
			partner:    model.NotAvailable,
			partnerMoA: model.NotAvailable,
			regimen:    base.Value(model.FieldPrimaryDrug),
			regimenMoA: base.Value(model.FieldPrimaryDrugMoA),
		}
		combo := asExtracted
		combo.monoCombo = "Combo"
		return []comboVariant{mono, combo}
	}
	return []comboVariant{asExtracted}
}

// splitValues splits a multi-valued field on "; " or ", " list separators.
// Single values (including the sentinel) come back as a one-element slice so
// the cross product always has at least one iteration per axis.
func splitValues(value string) []string {
	if value == "" || value == model.NotAvailable {
		return []string{value}
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	})
	var out []string
	seen := make(map[string]bool)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{value}
	}
	return out
}

func buildRow(base *model.AnalysisResult, cv comboVariant, lot, sub, roa string) model.AnalysisResult {
	row := base.Clone()
	set := func(field, value string) {
		fv := row.Fields[field]
		fv.Field = field
		fv.Value = value
		if fv.Provenance == "" {
			fv.Provenance = model.ProvenanceTrialRecord
		}
		row.Fields[field] = fv
	}

	set(model.FieldMonoCombo, cv.monoCombo)
	set(model.FieldCombinationPartner, cv.partner)
	set(model.FieldMoAOfCombination, cv.partnerMoA)
	set(model.FieldExperimentalRegimen, cv.regimen)
	set(model.FieldMoAOfRegimen, cv.regimenMoA)
	set(model.FieldLineOfTherapy, lot)
	set(model.FieldIndication, sub)
	set(model.FieldPrimaryDrugROA, roa)
	return *row
}

// CheckGroupInvariant verifies that every field outside the split dimensions
// (patient_population excepted) is byte-identical across the group's rows.
// A violation is a defect in expansion, not bad input, so it fails the run.
func CheckGroupInvariant(group *model.RowSplitGroup) error {
	if len(group.Rows) < 2 {
		return nil
	}
	first := group.Rows[0]
	for _, field := range model.SchemaFields() {
		if model.NonSplitExempt(field) {
			continue
		}
		want := first.Value(field)
		for i, row := range group.Rows[1:] {
			if got := row.Value(field); got != want {
				return resilience.NewIntegrityError(
					"row split group %s: field %s diverges between row 0 (%q) and row %d (%q)",
					group.NCTID, field, want, i+1, got)
			}
		}
	}
	return nil
}
