package fetcher

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ishankgp/clinical-trial/internal/model"
)

// studyJSON mirrors the subset of the ClinicalTrials.gov v2 study layout the
// engine consumes. Everything lives under protocolSection, split into modules.
type studyJSON struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID         string `json:"nctId"`
			BriefTitle    string `json:"briefTitle"`
			OfficialTitle string `json:"officialTitle"`
			Acronym       string `json:"acronym"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus               string     `json:"overallStatus"`
			StartDateStruct             dateStruct `json:"startDateStruct"`
			PrimaryCompletionDateStruct dateStruct `json:"primaryCompletionDateStruct"`
			CompletionDateStruct        dateStruct `json:"completionDateStruct"`
			LastUpdatePostDateStruct    dateStruct `json:"lastUpdatePostDateStruct"`
		} `json:"statusModule"`
		SponsorCollaboratorsModule struct {
			LeadSponsor   agency   `json:"leadSponsor"`
			Collaborators []agency `json:"collaborators"`
		} `json:"sponsorCollaboratorsModule"`
		DescriptionModule struct {
			BriefSummary        string `json:"briefSummary"`
			DetailedDescription string `json:"detailedDescription"`
		} `json:"descriptionModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		DesignModule struct {
			Phases         []string `json:"phases"`
			EnrollmentInfo struct {
				Count int `json:"count"`
			} `json:"enrollmentInfo"`
		} `json:"designModule"`
		ArmsInterventionsModule struct {
			ArmGroups []struct {
				Label             string   `json:"label"`
				Type              string   `json:"type"`
				Description       string   `json:"description"`
				InterventionNames []string `json:"interventionNames"`
			} `json:"armGroups"`
			Interventions []struct {
				Type           string   `json:"type"`
				Name           string   `json:"name"`
				Description    string   `json:"description"`
				ArmGroupLabels []string `json:"armGroupLabels"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
		OutcomesModule struct {
			PrimaryOutcomes   []outcomeJSON `json:"primaryOutcomes"`
			SecondaryOutcomes []outcomeJSON `json:"secondaryOutcomes"`
		} `json:"outcomesModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
		} `json:"eligibilityModule"`
		ContactsLocationsModule struct {
			OverallOfficials []struct {
				Name        string `json:"name"`
				Role        string `json:"role"`
				Affiliation string `json:"affiliation"`
			} `json:"overallOfficials"`
			Locations []struct {
				Country string `json:"country"`
			} `json:"locations"`
		} `json:"contactsLocationsModule"`
	} `json:"protocolSection"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type agency struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

type outcomeJSON struct {
	Measure   string `json:"measure"`
	TimeFrame string `json:"timeFrame"`
}

// Decode converts a raw v2 study document into a TrialRecord.
func Decode(raw []byte) (*model.TrialRecord, error) {
	var study studyJSON
	if err := json.Unmarshal(raw, &study); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode study")
	}

	p := study.ProtocolSection
	rec := &model.TrialRecord{
		NCTID:                 p.IdentificationModule.NCTID,
		BriefTitle:            p.IdentificationModule.BriefTitle,
		OfficialTitle:         p.IdentificationModule.OfficialTitle,
		Acronym:               p.IdentificationModule.Acronym,
		BriefSummary:          p.DescriptionModule.BriefSummary,
		DetailedDescription:   p.DescriptionModule.DetailedDescription,
		EligibilityCriteria:   p.EligibilityModule.EligibilityCriteria,
		Conditions:            p.ConditionsModule.Conditions,
		Phases:                p.DesignModule.Phases,
		Status:                p.StatusModule.OverallStatus,
		Enrollment:            p.DesignModule.EnrollmentInfo.Count,
		LeadSponsor:           p.SponsorCollaboratorsModule.LeadSponsor.Name,
		LeadSponsorClass:      p.SponsorCollaboratorsModule.LeadSponsor.Class,
		StartDate:             p.StatusModule.StartDateStruct.Date,
		PrimaryCompletionDate: p.StatusModule.PrimaryCompletionDateStruct.Date,
		CompletionDate:        p.StatusModule.CompletionDateStruct.Date,
		LastUpdateDate:        p.StatusModule.LastUpdatePostDateStruct.Date,
		FetchedAt:             time.Now().UTC(),
	}
	if rec.NCTID == "" {
		return nil, eris.New("fetcher: study document has no nctId")
	}

	for _, c := range p.SponsorCollaboratorsModule.Collaborators {
		if c.Name != "" {
			rec.Collaborators = append(rec.Collaborators, c.Name)
		}
	}
	for _, g := range p.ArmsInterventionsModule.ArmGroups {
		rec.Arms = append(rec.Arms, model.Arm{
			Label:             g.Label,
			Type:              model.ArmType(g.Type),
			Description:       g.Description,
			InterventionNames: g.InterventionNames,
		})
	}
	for _, iv := range p.ArmsInterventionsModule.Interventions {
		rec.Interventions = append(rec.Interventions, model.Intervention{
			Type:        iv.Type,
			Name:        iv.Name,
			Description: iv.Description,
			ArmLabels:   iv.ArmGroupLabels,
		})
	}
	for _, o := range p.OutcomesModule.PrimaryOutcomes {
		rec.PrimaryOutcomes = append(rec.PrimaryOutcomes, model.Outcome{Measure: o.Measure, TimeFrame: o.TimeFrame})
	}
	for _, o := range p.OutcomesModule.SecondaryOutcomes {
		rec.SecondaryOutcomes = append(rec.SecondaryOutcomes, model.Outcome{Measure: o.Measure, TimeFrame: o.TimeFrame})
	}
	for _, off := range p.ContactsLocationsModule.OverallOfficials {
		rec.Investigators = append(rec.Investigators, model.Investigator{
			Name:        off.Name,
			Role:        off.Role,
			Affiliation: off.Affiliation,
		})
	}

	// Locations repeat per site; countries dedupe in registry order.
	seen := make(map[string]bool)
	for _, loc := range p.ContactsLocationsModule.Locations {
		if loc.Country == "" || seen[loc.Country] {
			continue
		}
		seen[loc.Country] = true
		rec.Countries = append(rec.Countries, loc.Country)
	}

	return rec, nil
}
