package promptlib

import (
	_ "embed"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ishankgp/clinical-trial/internal/model"
)

//go:embed vocab.yaml
var vocabYAML []byte

// vocab holds the standardization tables keyed by lowercase variant.
type vocab struct {
	DrugNames  map[string]string `yaml:"drug_names"`
	Biomarkers map[string]string `yaml:"biomarkers"`
	MoA        map[string]string `yaml:"moa"`
	ROA        map[string]string `yaml:"roa"`
}

var tables vocab

// foldedTables reindexes each table by foldKey so a lookup survives
// punctuation and spacing differences ("Poly(ADP-ribose) polymerase
// inhibitor" matches "parp inhibitor" variants spelled without them).
var foldedTables struct {
	drugNames  map[string]string
	biomarkers map[string]string
	moa        map[string]string
	roa        map[string]string
}

func init() {
	if err := yaml.Unmarshal(vocabYAML, &tables); err != nil {
		panic("promptlib: invalid embedded vocabulary: " + err.Error())
	}
	foldedTables.drugNames = foldTable(tables.DrugNames)
	foldedTables.biomarkers = foldTable(tables.Biomarkers)
	foldedTables.moa = foldTable(tables.MoA)
	foldedTables.roa = foldTable(tables.ROA)
}

func foldTable(table map[string]string) map[string]string {
	out := make(map[string]string, len(table))
	for k, v := range table {
		out[foldKey(k)] = v
	}
	return out
}

// foldKey lowercases a variant and drops every rune that is not a letter or
// digit.
func foldKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StandardizeDrugName maps brand names to generics. Unknown names pass
// through trimmed, preserving code names like "MK-2870".
func StandardizeDrugName(name string) string {
	return lookup(tables.DrugNames, foldedTables.drugNames, name)
}

// StandardizeBiomarker normalizes one biomarker symbol (HER2 not ErbB2,
// PD-L1 not PDL1).
func StandardizeBiomarker(symbol string) string {
	return lookup(tables.Biomarkers, foldedTables.biomarkers, symbol)
}

// StandardizeBiomarkerList normalizes a comma- or semicolon-separated
// biomarker list, preserving the original order.
func StandardizeBiomarkerList(value string) string {
	if value == "" || value == model.NotAvailable {
		return value
	}
	sep := ", "
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, StandardizeBiomarker(f))
		}
	}
	if len(out) == 0 {
		return value
	}
	return strings.Join(out, sep)
}

// StandardizeMoA normalizes mechanism-of-action shorthand into the
// "Anti-[Target]" / "[Target] inhibitor" format.
func StandardizeMoA(moa string) string {
	return lookup(tables.MoA, foldedTables.moa, moa)
}

// StandardizeROA normalizes route-of-administration variants into the
// dataset labels ("Intravenous (IV)", "Oral").
func StandardizeROA(roa string) string {
	return lookup(tables.ROA, foldedTables.roa, roa)
}

// DrugMentions returns every known drug surface form (brand and generic)
// keyed lowercase, mapped to its generic name. The basic query tier scans
// free text against this table.
func DrugMentions() map[string]string {
	out := make(map[string]string, len(tables.DrugNames)*2)
	for brand, generic := range tables.DrugNames {
		out[brand] = generic
		out[strings.ToLower(generic)] = generic
	}
	return out
}

// lookup tries the exact lowercase key first, then the folded key. Unknown
// values pass through trimmed.
func lookup(table, folded map[string]string, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == model.NotAvailable {
		return trimmed
	}
	if mapped, ok := table[strings.ToLower(trimmed)]; ok {
		return mapped
	}
	if mapped, ok := folded[foldKey(trimmed)]; ok {
		return mapped
	}
	return trimmed
}
