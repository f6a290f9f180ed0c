// Package service implements the clinical suggestion engine: medicine
// suggestion, dosage suggestion, interaction checking and prescription
// optimization. All operations are stateless reads over the knowledge
// base; they never persist anything and never perform side effects.
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

// MedicineSuggester ranks catalog medicines against a diagnosis and
// symptom list, down-weighting candidates that interact with the
// patient's existing medications and excluding allergy matches entirely.
type MedicineSuggester struct {
	kb      domain.KnowledgeBase
	matcher *knowledge.IndicationMatcher
	config  domain.EngineConfig
	log     *logrus.Logger
}

// NewMedicineSuggester creates a new medicine suggester
func NewMedicineSuggester(kb domain.KnowledgeBase, matcher *knowledge.IndicationMatcher, config domain.EngineConfig, logger *logrus.Logger) *MedicineSuggester {
	return &MedicineSuggester{
		kb:      kb,
		matcher: matcher,
		config:  config,
		log:     logger,
	}
}

// Suggest returns ranked medicine suggestions for the request. The
// result is deterministic: confidence descending, name ascending on
// ties.
func (s *MedicineSuggester) Suggest(ctx context.Context, req *domain.SuggestionRequest) (*domain.SuggestionResponse, error) {
	if err := req.ValidateForMedicines(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"diagnosis": req.Diagnosis,
		"symptoms":  len(req.Symptoms),
		"category":  req.Category,
	}).Info("Suggesting medicines")

	candidates, err := s.kb.FindActiveMedicines(ctx, domain.CatalogFilter{
		Category: req.Category,
		Type:     req.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidate medicines: %w", err)
	}

	text := req.ClinicalText()
	interactions := s.lookupInteractions(ctx, req.Patient.ExistingMedications, candidates)

	var suggestions []domain.MedicineSuggestion
	for _, m := range candidates {
		if req.Patient.IsAllergicTo(m) {
			s.log.WithFields(logrus.Fields{
				"medicine": m.Name,
			}).Debug("Excluding medicine due to patient allergy")
			continue
		}

		score, matched := s.matcher.Match(text, m)
		if score <= 0 {
			continue
		}

		suggestion := domain.MedicineSuggestion{
			MedicineName:       m.Name,
			GenericName:        m.GenericName,
			Category:           m.Category,
			Confidence:         score,
			MatchedIndications: matched,
			Reasoning:          buildReasoning(m, matched),
		}

		if m.IsControlled {
			suggestion.Warnings = append(suggestion.Warnings,
				"Controlled substance: verify prescribing authority and local regulations")
		}

		// One penalty per candidate, however many of the patient's
		// medications it interacts with. The warnings list still names
		// each interacting medication.
		if interacting := interactions[domain.NormalizeMedicationName(m.Name)]; len(interacting) > 0 {
			suggestion.Confidence -= s.config.InteractionPenalty
			for _, w := range interacting {
				suggestion.Warnings = append(suggestion.Warnings,
					fmt.Sprintf("%s interaction with existing medication: %s", w.Severity, w.Description))
			}
		}

		suggestion.Confidence = clamp01(suggestion.Confidence)
		if suggestion.Confidence <= s.config.MinConfidence {
			continue
		}

		suggestions = append(suggestions, suggestion)
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].MedicineName < suggestions[j].MedicineName
	})

	limit := req.Limit
	if limit <= 0 || limit > s.config.MaxSuggestions {
		limit = s.config.MaxSuggestions
	}
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	s.log.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"suggestions": len(suggestions),
	}).Info("Medicine suggestion completed")

	return &domain.SuggestionResponse{
		Suggestions: suggestions,
		Count:       len(suggestions),
		Request:     *req,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// lookupInteractions fetches, in one rule table pass, every interaction
// between the patient's existing medications and any candidate, keyed by
// normalized candidate name. A rule lookup failure degrades to no
// penalties rather than failing the suggestion: advisory data is better
// partial than absent.
func (s *MedicineSuggester) lookupInteractions(ctx context.Context, existing []string, candidates []*domain.MedicineRecord) map[string][]domain.InteractionWarning {
	if len(existing) == 0 || len(candidates) == 0 {
		return nil
	}

	existingSet := make(map[string]bool, len(existing))
	names := make([]string, 0, len(existing)+len(candidates))
	for _, e := range existing {
		norm := domain.NormalizeMedicationName(e)
		if norm != "" && !existingSet[norm] {
			existingSet[norm] = true
			names = append(names, e)
		}
	}
	for _, c := range candidates {
		names = append(names, c.Name)
	}

	warnings, err := s.kb.FindRules(ctx, names)
	if err != nil {
		s.log.WithError(err).Warn("Interaction rule lookup failed; suggesting without penalties")
		return nil
	}

	byCandidate := make(map[string][]domain.InteractionWarning)
	for _, w := range warnings {
		if len(w.Medications) < 2 {
			continue
		}
		a := domain.NormalizeMedicationName(w.Medications[0])
		b := domain.NormalizeMedicationName(w.Medications[1])
		// Only pairs linking an existing medication to a candidate count;
		// interactions among the existing medications themselves belong to
		// the interaction checker.
		switch {
		case existingSet[a] && !existingSet[b]:
			byCandidate[b] = append(byCandidate[b], w)
		case existingSet[b] && !existingSet[a]:
			byCandidate[a] = append(byCandidate[a], w)
		}
	}
	return byCandidate
}

func buildReasoning(m *domain.MedicineRecord, matched []string) string {
	if len(matched) == 0 {
		return fmt.Sprintf("%s (%s) partially matches the presented condition", m.Name, m.Category)
	}
	return fmt.Sprintf("%s (%s) is indicated for %s", m.Name, m.Category, strings.Join(matched, ", "))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
