package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// DosageSuggester proposes dosage regimens for a named medicine, adjusted
// to the patient's age band and annotated with interaction cautions. A
// pediatric patient is never handed a bare adult regimen: adult-audience
// regimens are either replaced by a parsed pediatric one or returned
// heavily down-weighted with an explicit warning.
type DosageSuggester struct {
	kb     domain.KnowledgeBase
	config domain.EngineConfig
	log    *logrus.Logger
}

// NewDosageSuggester creates a new dosage suggester
func NewDosageSuggester(kb domain.KnowledgeBase, config domain.EngineConfig, logger *logrus.Logger) *DosageSuggester {
	return &DosageSuggester{
		kb:     kb,
		config: config,
		log:    logger,
	}
}

// Suggest returns ranked dosage regimens for the requested medicine.
// Unknown medicines yield a NotFoundError; a known medicine whose dosage
// text cannot be parsed yields an empty suggestion list.
func (s *DosageSuggester) Suggest(ctx context.Context, req *domain.SuggestionRequest) (*domain.DosageResponse, error) {
	if err := req.ValidateForDosage(); err != nil {
		return nil, err
	}

	medicine, err := s.kb.GetByName(ctx, req.MedicineName)
	if err != nil {
		return nil, err
	}

	band := req.Patient.AgeBand()
	s.log.WithFields(logrus.Fields{
		"medicine": medicine.Name,
		"age_band": band,
	}).Info("Suggesting dosage")

	regimens := parseRegimens(medicine.DosageText)
	cautions := s.interactionCautions(ctx, medicine, req.Patient.ExistingMedications)

	var suggestions []domain.DosageSuggestion
	for _, regimen := range regimens {
		confidence, warnings := scoreRegimen(regimen, band)
		if confidence <= 0 {
			continue
		}

		if len(cautions) > 0 {
			confidence -= 0.1
			warnings = append(warnings, cautions...)
		}

		confidence = clamp01(confidence)
		if confidence <= s.config.MinConfidence {
			continue
		}

		suggestions = append(suggestions, domain.DosageSuggestion{
			MedicineName: medicine.Name,
			Dosage:       regimen.Dose,
			Frequency:    regimen.Frequency,
			Route:        medicine.Route,
			Duration:     regimen.Duration,
			Confidence:   confidence,
			Reasoning:    regimenReasoning(regimen, band),
			Warnings:     warnings,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].Dosage < suggestions[j].Dosage
	})

	return &domain.DosageResponse{
		MedicineName: medicine.Name,
		Suggestions:  suggestions,
		Count:        len(suggestions),
	}, nil
}

// scoreRegimen rates how well a regimen's audience fits the patient's
// age band and returns fit warnings.
func scoreRegimen(regimen parsedRegimen, band domain.AgeBand) (float64, []string) {
	switch regimen.Audience {
	case domain.AUDIENCE_ANY:
		if band == domain.AGE_PEDIATRIC {
			return 0.55, []string{"General regimen not written for children; verify pediatric dosing"}
		}
		return 0.7, nil

	case domain.AUDIENCE_PEDIATRIC:
		switch band {
		case domain.AGE_PEDIATRIC:
			return 0.9, nil
		case domain.AGE_ADOLESCENT:
			return 0.6, []string{"Pediatric regimen for an adolescent patient; weight-based dosing may still apply"}
		default:
			return 0, nil
		}

	case domain.AUDIENCE_ADULT:
		switch band {
		case domain.AGE_ADULT:
			return 0.9, nil
		case domain.AGE_ADOLESCENT:
			return 0.65, []string{"Adult regimen for an adolescent patient; confirm suitability"}
		case domain.AGE_GERIATRIC:
			return 0.75, []string{"Elderly patient: consider dose reduction and renal function"}
		case domain.AGE_PEDIATRIC:
			return 0.35, []string{"Adult regimen is NOT suitable for a child without adjustment; consult pediatric dosing references"}
		}

	case domain.AUDIENCE_GERIATRIC:
		if band == domain.AGE_GERIATRIC {
			return 0.95, nil
		}
		return 0, nil
	}
	return 0, nil
}

// interactionCautions checks the requested medicine against the patient's
// existing medications and returns dose-review cautions. Rule lookup
// failure degrades to no cautions.
func (s *DosageSuggester) interactionCautions(ctx context.Context, medicine *domain.MedicineRecord, existing []string) []string {
	if len(existing) == 0 {
		return nil
	}

	names := append([]string{medicine.Name}, existing...)
	warnings, err := s.kb.FindRules(ctx, names)
	if err != nil {
		s.log.WithError(err).Warn("Interaction rule lookup failed; dosing without cautions")
		return nil
	}

	var cautions []string
	for _, w := range warnings {
		if w.Involves(medicine.Name) {
			cautions = append(cautions,
				fmt.Sprintf("Interacts with an existing medication (%s): review dose and monitoring", w.Severity))
		}
	}
	return cautions
}

func regimenReasoning(regimen parsedRegimen, band domain.AgeBand) string {
	switch regimen.Audience {
	case domain.AUDIENCE_PEDIATRIC:
		return "Pediatric regimen from the catalog dosing reference"
	case domain.AUDIENCE_ADULT:
		return "Adult regimen from the catalog dosing reference"
	case domain.AUDIENCE_GERIATRIC:
		return "Geriatric regimen from the catalog dosing reference"
	default:
		return "General regimen from the catalog dosing reference"
	}
}
