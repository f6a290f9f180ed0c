package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
	"github.com/clinic-suggestion-engine/internal/knowledge"
)

// Section names reported in OptimizationResult.FailedSections when a
// sub-step could not run.
const (
	sectionPatient      = "patient"
	sectionInteractions = "interactions"
	sectionDosage       = "dosage"
	sectionAlternatives = "alternatives"
)

// PrescriptionOptimizer reviews a draft prescription against the
// patient's history: interaction warnings across draft and existing
// medications, dosage fill-ins for incomplete items, duplicate-category
// improvements, and safer alternatives for high-risk items. Sub-steps
// degrade independently; a failed step is annotated, never fatal,
// because a partial advisory review still has clinical value.
type PrescriptionOptimizer struct {
	kb       domain.KnowledgeBase
	patients domain.PatientReader
	dosage   *DosageSuggester
	matcher  *knowledge.IndicationMatcher
	config   domain.EngineConfig
	log      *logrus.Logger
}

// NewPrescriptionOptimizer creates a new prescription optimizer
func NewPrescriptionOptimizer(
	kb domain.KnowledgeBase,
	patients domain.PatientReader,
	dosage *DosageSuggester,
	matcher *knowledge.IndicationMatcher,
	config domain.EngineConfig,
	logger *logrus.Logger,
) *PrescriptionOptimizer {
	return &PrescriptionOptimizer{
		kb:       kb,
		patients: patients,
		dosage:   dosage,
		matcher:  matcher,
		config:   config,
		log:      logger,
	}
}

// Optimize reviews the draft prescription for the given patient. The
// diagnosis, when present, scopes the alternative search. A missing
// patient is a NotFoundError: the review is meaningless without the
// history it is checked against. A patient store outage, by contrast,
// degrades to a review of the draft alone.
func (o *PrescriptionOptimizer) Optimize(ctx context.Context, patientID, diagnosis string, items []domain.PrescriptionItem) (*domain.OptimizationResult, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.NewValidationError("patient_id", "patient id is required", nil)
	}
	if len(items) == 0 {
		return nil, domain.NewValidationError("items", "at least one prescription item is required", nil)
	}

	o.log.WithFields(logrus.Fields{
		"patient_id": patientID,
		"items":      len(items),
	}).Info("Optimizing prescription")

	result := &domain.OptimizationResult{}

	patient := domain.PatientContext{}
	record, err := o.patients.GetPatient(ctx, patientID)
	switch {
	case err == nil:
		patient = record.Context()
	case domain.IsNotFound(err):
		return nil, err
	default:
		o.log.WithError(err).Warn("Patient store unavailable; reviewing draft without history")
		result.FailedSections = append(result.FailedSections, sectionPatient)
	}

	draftNames := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.MedicineName) != "" {
			draftNames = append(draftNames, item.MedicineName)
		}
	}

	o.checkInteractions(ctx, result, draftNames, patient.ExistingMedications)
	o.fillMissingDosages(ctx, result, items, patient)
	o.flagDuplicateCategories(ctx, result, draftNames)
	o.proposeAlternatives(ctx, result, draftNames, diagnosis, patient)

	result.Events = append(result.Events, domain.EngineEvent{
		Type:       domain.EventPrescriptionReviewed,
		Detail:     fmt.Sprintf("%d items reviewed", len(items)),
		OccurredAt: time.Now().UTC(),
	})
	for _, w := range result.Warnings {
		if w.Severity == domain.SEVERITY_CONTRAINDICATED {
			result.Events = append(result.Events, domain.EngineEvent{
				Type:         domain.EventInteractionContraindicated,
				MedicineName: strings.Join(w.Medications, " + "),
				Detail:       w.Description,
				OccurredAt:   time.Now().UTC(),
			})
		}
	}
	if len(result.AlternativeMedicines) > 0 {
		result.Events = append(result.Events, domain.EngineEvent{
			Type:       domain.EventAlternativesProposed,
			Detail:     fmt.Sprintf("%d alternatives proposed", len(result.AlternativeMedicines)),
			OccurredAt: time.Now().UTC(),
		})
	}

	result.Finalize()

	o.log.WithFields(logrus.Fields{
		"warnings":        len(result.Warnings),
		"suggestions":     len(result.Suggestions),
		"improvements":    len(result.Improvements),
		"alternatives":    len(result.AlternativeMedicines),
		"failed_sections": result.FailedSections,
	}).Info("Prescription optimization completed")

	return result, nil
}

// checkInteractions evaluates the union of the draft and the patient's
// existing medications against the rule table.
func (o *PrescriptionOptimizer) checkInteractions(ctx context.Context, result *domain.OptimizationResult, draftNames, existing []string) {
	names := append(append([]string{}, draftNames...), existing...)
	warnings, err := o.kb.FindRules(ctx, names)
	if err != nil {
		o.log.WithError(err).Warn("Interaction check failed during optimization")
		result.FailedSections = append(result.FailedSections, sectionInteractions)
		return
	}
	result.Warnings = warnings
}

// fillMissingDosages proposes the best regimen for every draft item with
// incomplete dosing information.
func (o *PrescriptionOptimizer) fillMissingDosages(ctx context.Context, result *domain.OptimizationResult, items []domain.PrescriptionItem, patient domain.PatientContext) {
	failed := false
	for i := range items {
		item := &items[i]
		if item.IsComplete() || strings.TrimSpace(item.MedicineName) == "" {
			continue
		}

		resp, err := o.dosage.Suggest(ctx, &domain.SuggestionRequest{
			MedicineName: item.MedicineName,
			Patient:      patient,
		})
		if err != nil {
			if domain.IsNotFound(err) {
				result.Suggestions = append(result.Suggestions, domain.OptimizationSuggestion{
					MedicineName: item.MedicineName,
					Message:      "Medicine not found in the catalog; verify the name",
				})
				continue
			}
			o.log.WithError(err).WithField("medicine", item.MedicineName).Warn("Dosage fill-in failed during optimization")
			failed = true
			continue
		}

		if resp.Count == 0 {
			result.Suggestions = append(result.Suggestions, domain.OptimizationSuggestion{
				MedicineName: item.MedicineName,
				Message:      "Dosing information is incomplete and no catalog regimen could be parsed",
			})
			continue
		}

		proposed := resp.Suggestions[0]
		result.Suggestions = append(result.Suggestions, domain.OptimizationSuggestion{
			MedicineName: item.MedicineName,
			Message:      "Dosing information is incomplete; proposed regimen from the catalog",
			Proposed:     &proposed,
		})
	}
	if failed {
		result.FailedSections = append(result.FailedSections, sectionDosage)
	}
}

// flagDuplicateCategories reports draft items sharing a therapeutic
// category, the most common form of redundant prescribing.
func (o *PrescriptionOptimizer) flagDuplicateCategories(ctx context.Context, result *domain.OptimizationResult, draftNames []string) {
	byCategory := make(map[string][]string)
	for _, name := range draftNames {
		m, err := o.kb.GetByName(ctx, name)
		if err != nil {
			continue // unknown items are reported by the dosage fill-in path
		}
		cat := strings.ToLower(m.Category)
		byCategory[cat] = append(byCategory[cat], m.Name)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		medicines := byCategory[cat]
		if len(medicines) < 2 {
			continue
		}
		result.Improvements = append(result.Improvements, domain.OptimizationImprovement{
			Type:      "duplicate_category",
			Message:   fmt.Sprintf("Multiple medicines from the same category (%s); consider consolidating", strings.Join(medicines, ", ")),
			Medicines: medicines,
		})
	}
}

// proposeAlternatives searches the catalog for substitutes for draft
// medicines involved in HIGH or CONTRAINDICATED warnings, excluding the
// offender itself, everything already in the draft and anything the
// patient is allergic to. The diagnosis, when supplied, scopes the
// search alongside the offender's own indications. Offenders are
// processed in sorted order, each medicine is proposed at most once,
// and the combined list is sorted confidence descending, name
// ascending, so identical inputs always yield identical output.
func (o *PrescriptionOptimizer) proposeAlternatives(ctx context.Context, result *domain.OptimizationResult, draftNames []string, diagnosis string, patient domain.PatientContext) {
	offenderSet := make(map[string]bool)
	for _, w := range result.Warnings {
		if !w.Severity.RequiresReview() {
			continue
		}
		for _, name := range draftNames {
			if w.Involves(name) {
				offenderSet[domain.NormalizeMedicationName(name)] = true
			}
		}
	}
	if len(offenderSet) == 0 {
		return
	}

	offenders := make([]string, 0, len(offenderSet))
	for offender := range offenderSet {
		offenders = append(offenders, offender)
	}
	sort.Strings(offenders)

	draftSet := make(map[string]bool, len(draftNames))
	for _, name := range draftNames {
		draftSet[domain.NormalizeMedicationName(name)] = true
	}

	candidates, err := o.kb.FindActiveMedicines(ctx, domain.CatalogFilter{})
	if err != nil {
		o.log.WithError(err).Warn("Alternative search failed during optimization")
		result.FailedSections = append(result.FailedSections, sectionAlternatives)
		return
	}

	proposed := make(map[string]bool)
	for _, offender := range offenders {
		medicine, err := o.kb.GetByName(ctx, offender)
		if err != nil {
			continue
		}

		text := strings.TrimSpace(diagnosis + " " + strings.Join(medicine.Indications, " "))
		count := 0
		for _, candidate := range candidates {
			if count >= 3 {
				break
			}
			if draftSet[domain.NormalizeMedicationName(candidate.Name)] {
				continue
			}
			if proposed[domain.NormalizeMedicationName(candidate.Name)] {
				continue
			}
			if patient.IsAllergicTo(candidate) {
				continue
			}
			score, matched := o.matcher.Match(text, candidate)
			if score <= o.config.MinConfidence {
				continue
			}
			proposed[domain.NormalizeMedicationName(candidate.Name)] = true
			result.AlternativeMedicines = append(result.AlternativeMedicines, domain.MedicineSuggestion{
				MedicineName:       candidate.Name,
				GenericName:        candidate.GenericName,
				Category:           candidate.Category,
				Confidence:         clamp01(score),
				MatchedIndications: matched,
				Reasoning:          fmt.Sprintf("Possible substitute for %s covering the same indications", medicine.Name),
			})
			count++
		}
	}

	sort.Slice(result.AlternativeMedicines, func(i, j int) bool {
		a, b := result.AlternativeMedicines[i], result.AlternativeMedicines[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.MedicineName < b.MedicineName
	})
}
