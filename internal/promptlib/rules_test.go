package promptlib

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ishankgp/clinical-trial/internal/model"
)

func TestClassifyLineOfTherapy(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Participants must be treatment-naive", "1L"},
		{"previously untreated patients with advanced disease", "1L"},
		{"Newly diagnosed multiple myeloma", "1L"},
		{"no more than 1 prior line of systemic therapy", "2L"},
		{"received one prior line of platinum-based therapy", "2L"},
		{"patients who progressed on prior platinum-based chemotherapy", "2L+"},
		{"received ≥1 prior line of therapy", "2L+"},
		{"received at least one prior line of therapy", "2L+"},
		{"refractory or intolerant to standard of care", "2L+"},
		{"treatment given prior to surgery", "Neoadjuvant"},
		{"neoadjuvant chemotherapy followed by resection", "Neoadjuvant"},
		{"adjuvant therapy after complete resection", "Adjuvant"},
		{"as maintenance following first-line induction", "Maintenance"},
		{"a study of healthy volunteers", model.NotAvailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLineOfTherapy(tt.text), "text: %s", tt.text)
	}
}

func TestClassifySponsorType(t *testing.T) {
	assert.Equal(t, "Industry Only", ClassifySponsorType("INDUSTRY"))
	assert.Equal(t, "Academic Only", ClassifySponsorType("OTHER"))
	assert.Equal(t, "Industry-Academic Collaboration", ClassifySponsorType("NIH"))
	assert.Equal(t, "Industry-Academic Collaboration", ClassifySponsorType("FED"))
	assert.Equal(t, model.NotAvailable, ClassifySponsorType(""))
}

func TestClassifyGeography(t *testing.T) {
	assert.Equal(t, "Global", ClassifyGeography([]string{
		"United States", "Germany", "Japan", "China",
	}))
	assert.Equal(t, "China Only", ClassifyGeography([]string{"China"}))
	assert.Equal(t, "China Only", ClassifyGeography([]string{"China", "Taiwan"}))
	assert.Equal(t, "International", ClassifyGeography([]string{"France", "Spain"}))
	assert.Equal(t, "International", ClassifyGeography([]string{"United States"}))
	assert.Equal(t, model.NotAvailable, ClassifyGeography(nil))
}

func TestClassifyStageOfDisease(t *testing.T) {
	assert.Equal(t, "Stage 4", ClassifyStageOfDisease("patients with metastatic urothelial carcinoma"))
	assert.Equal(t, "Stage 3/4", ClassifyStageOfDisease("locally advanced or metastatic disease"))
	assert.Equal(t, "Stage 1/2", ClassifyStageOfDisease("early-stage breast cancer"))
	assert.Equal(t, model.NotAvailable, ClassifyStageOfDisease("type 2 diabetes"))
}

func TestDetectBiomarkers(t *testing.T) {
	found := DetectBiomarkers("Patients must be PD-L1 positive (CPS ≥10) with KRAS G12C mutation")
	assert.Equal(t, []string{"PD-L1", "KRAS"}, found)

	// PD-1 must not fire when only PD-L1 is present.
	assert.NotContains(t, DetectBiomarkers("PD-L1 expression required"), "PD-1")

	assert.Empty(t, DetectBiomarkers("healthy volunteers"))
	assert.Empty(t, DetectBiomarkers(""))
}

func TestClassifyModality(t *testing.T) {
	assert.Equal(t, "Monoclonal antibody", ClassifyModality("pembrolizumab", ""))
	assert.Equal(t, "Small molecule", ClassifyModality("osimertinib", ""))
	assert.Equal(t, "Small molecule", ClassifyModality("olaparib", ""))
	assert.Equal(t, "ADC", ClassifyModality("enfortumab vedotin", ""))
	assert.Equal(t, "ADC", ClassifyModality("XB-002", "a novel antibody-drug conjugate targeting tissue factor"))
	assert.Equal(t, "CAR-T", ClassifyModality("ALLO-501", "an allogeneic chimeric antigen receptor T cell product"))
	assert.Equal(t, "Cell therapy", ClassifyModality("tisagenlecleucel", ""))
	assert.Equal(t, model.NotAvailable, ClassifyModality("BMS-986012", ""))
}

func TestIsActiveComparatorArm(t *testing.T) {
	assert.True(t, IsActiveComparatorArm(model.Arm{Type: model.ArmActiveComparator}))
	assert.True(t, IsActiveComparatorArm(model.Arm{Type: model.ArmPlacebo}))
	assert.True(t, IsActiveComparatorArm(model.Arm{Type: model.ArmOther, Label: "Comparator: Chemo"}))
	assert.False(t, IsActiveComparatorArm(model.Arm{Type: model.ArmExperimental, Label: "Arm A"}))
}
