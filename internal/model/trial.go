package model

import (
	"regexp"
	"time"
)

// nctIDPattern is the canonical registry identifier format: NCT + 8 digits.
var nctIDPattern = regexp.MustCompile(`^NCT\d{8}$`)

// ValidNCTID reports whether id matches the canonical trial identifier format.
// Validation happens before any fetch or analysis is attempted.
func ValidNCTID(id string) bool {
	return nctIDPattern.MatchString(id)
}

// ArmType classifies a trial arm as it appears in the registry record.
type ArmType string

const (
	ArmExperimental     ArmType = "EXPERIMENTAL"
	ArmActiveComparator ArmType = "ACTIVE_COMPARATOR"
	ArmPlacebo          ArmType = "PLACEBO_COMPARATOR"
	ArmNoIntervention   ArmType = "NO_INTERVENTION"
	ArmOther            ArmType = "OTHER"
)

// Arm is one arm group from the registry record.
type Arm struct {
	Label             string  `json:"label"`
	Type              ArmType `json:"type"`
	Description       string  `json:"description"`
	InterventionNames []string `json:"interventionNames"`
}

// Intervention is one intervention entry from the registry record.
type Intervention struct {
	Type        string   `json:"type"` // DRUG, BIOLOGICAL, PROCEDURE, ...
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ArmLabels   []string `json:"armGroupLabels"`
}

// Outcome is a primary or secondary endpoint.
type Outcome struct {
	Measure   string `json:"measure"`
	TimeFrame string `json:"timeFrame"`
}

// Investigator is a central contact or overall official.
type Investigator struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Affiliation string `json:"affiliation"`
}

// TrialRecord is the immutable input to the analysis engine: one registry
// record, already decoded out of the ClinicalTrials.gov v2 JSON layout by the
// fetcher. The engine never mutates it.
type TrialRecord struct {
	NCTID string `json:"nct_id"`

	// Free-text sections.
	BriefTitle          string `json:"brief_title"`
	OfficialTitle       string `json:"official_title"`
	Acronym             string `json:"acronym"`
	BriefSummary        string `json:"brief_summary"`
	DetailedDescription string `json:"detailed_description"`
	EligibilityCriteria string `json:"eligibility_criteria"`

	// Structured arm/intervention table.
	Conditions    []string       `json:"conditions"`
	Arms          []Arm          `json:"arms"`
	Interventions []Intervention `json:"interventions"`

	// Structured metadata.
	Phases                []string       `json:"phases"`
	Status                string         `json:"status"`
	Enrollment            int            `json:"enrollment"`
	LeadSponsor           string         `json:"lead_sponsor"`
	LeadSponsorClass      string         `json:"lead_sponsor_class"` // INDUSTRY, OTHER, NIH, ...
	Collaborators         []string       `json:"collaborators"`
	StartDate             string         `json:"start_date"`
	PrimaryCompletionDate string         `json:"primary_completion_date"`
	CompletionDate        string         `json:"completion_date"`
	Countries             []string       `json:"countries"`
	PrimaryOutcomes       []Outcome      `json:"primary_outcomes"`
	SecondaryOutcomes     []Outcome      `json:"secondary_outcomes"`
	Investigators         []Investigator `json:"investigators"`
	LastUpdateDate        string         `json:"last_update_date"`

	FetchedAt time.Time `json:"fetched_at"`
}

// ExperimentalArms returns the arms that carry the investigational regimen.
// Active comparators, placebo and no-intervention arms are excluded from
// combination-partner and mechanism extraction.
func (r *TrialRecord) ExperimentalArms() []Arm {
	var out []Arm
	for _, a := range r.Arms {
		if a.Type == ArmExperimental || a.Type == ArmOther {
			out = append(out, a)
		}
	}
	return out
}

// InterventionByName returns the intervention with the given name, matching
// case-insensitively on the registry name, or nil.
func (r *TrialRecord) InterventionByName(name string) *Intervention {
	for i := range r.Interventions {
		if equalFold(r.Interventions[i].Name, name) {
			return &r.Interventions[i]
		}
	}
	return nil
}
