package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request/Response Models

// SuggestionRequest is the union input for the suggestion operations.
// At least one of Diagnosis or Symptoms is required for medicine
// suggestion; MedicineName is required for dosage suggestion.
type SuggestionRequest struct {
	Diagnosis    string         `json:"diagnosis,omitempty"`
	Symptoms     []string       `json:"symptoms,omitempty"`
	Category     string         `json:"category,omitempty"`
	Type         string         `json:"type,omitempty"`
	MedicineName string         `json:"medicine_name,omitempty"`
	Limit        int            `json:"limit,omitempty"`
	Patient      PatientContext `json:"patient,omitempty"`
}

// ValidateForMedicines checks the request carries enough clinical context
// for medicine suggestion.
func (r *SuggestionRequest) ValidateForMedicines() error {
	if strings.TrimSpace(r.Diagnosis) == "" && len(r.Symptoms) == 0 {
		return NewValidationError("diagnosis", "at least one of diagnosis or symptoms is required", nil)
	}
	return nil
}

// ValidateForDosage checks the request names the medicine to dose.
func (r *SuggestionRequest) ValidateForDosage() error {
	if strings.TrimSpace(r.MedicineName) == "" {
		return NewValidationError("medicine_name", "medicine name is required for dosage suggestion", nil)
	}
	return nil
}

// ClinicalText combines diagnosis and symptoms into the text the
// indication matcher scores candidates against.
func (r *SuggestionRequest) ClinicalText() string {
	parts := make([]string, 0, len(r.Symptoms)+1)
	if d := strings.TrimSpace(r.Diagnosis); d != "" {
		parts = append(parts, d)
	}
	for _, s := range r.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// MedicineSuggestion is one ranked candidate from the medicine suggester.
type MedicineSuggestion struct {
	MedicineName       string   `json:"medicine_name"`
	GenericName        string   `json:"generic_name,omitempty"`
	Category           string   `json:"category"`
	Confidence         float64  `json:"confidence"`
	MatchedIndications []string `json:"matched_indications,omitempty"`
	Reasoning          string   `json:"reasoning"`
	Warnings           []string `json:"warnings,omitempty"`
}

// SuggestionResponse carries the ranked medicine suggestions plus the
// originating request echoed back for traceability.
type SuggestionResponse struct {
	Suggestions []MedicineSuggestion `json:"suggestions"`
	Count       int                  `json:"count"`
	Request     SuggestionRequest    `json:"request"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// DosageSuggestion is one ranked dosage regimen proposal.
type DosageSuggestion struct {
	MedicineName string   `json:"medicine_name"`
	Dosage       string   `json:"dosage"`
	Frequency    string   `json:"frequency,omitempty"`
	Route        string   `json:"route,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	Warnings     []string `json:"warnings,omitempty"`
}

// DosageResponse carries the ranked dosage suggestions for one medicine.
type DosageResponse struct {
	MedicineName string             `json:"medicine_name"`
	Suggestions  []DosageSuggestion `json:"suggestions"`
	Count        int                `json:"count"`
}

// InteractionWarning flags a pairwise interaction risk between two
// medications. Absence of a rule for a pair produces no warning; that is
// a documented limitation of the rule table, not evidence of safety.
type InteractionWarning struct {
	Medications    []string `json:"medications"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Key returns the order-independent pair key of the warning's medications.
func (w *InteractionWarning) Key() string {
	if len(w.Medications) < 2 {
		return NormalizeMedicationName(strings.Join(w.Medications, "|"))
	}
	return PairKey(w.Medications[0], w.Medications[1])
}

// Involves reports whether the warning names the given medication.
func (w *InteractionWarning) Involves(name string) bool {
	n := NormalizeMedicationName(name)
	for _, med := range w.Medications {
		if NormalizeMedicationName(med) == n {
			return true
		}
	}
	return false
}

// Validate ensures the warning carries a complete, valid rule.
func (w *InteractionWarning) Validate() error {
	if len(w.Medications) < 2 {
		return fmt.Errorf("interaction warning validation: %w", errors.New("at least two medications are required"))
	}
	if !w.Severity.IsValid() {
		return fmt.Errorf("interaction warning validation: %w", ErrInvalidSeverity)
	}
	return nil
}

// SeverityCounts tallies interaction warnings per severity level.
type SeverityCounts struct {
	Low             int `json:"low"`
	Moderate        int `json:"moderate"`
	High            int `json:"high"`
	Contraindicated int `json:"contraindicated"`
}

// Add increments the tally for the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SEVERITY_LOW:
		c.Low++
	case SEVERITY_MODERATE:
		c.Moderate++
	case SEVERITY_HIGH:
		c.High++
	case SEVERITY_CONTRAINDICATED:
		c.Contraindicated++
	}
}

// Total returns the sum over all severity levels. It always equals the
// warning count of the report it belongs to.
func (c *SeverityCounts) Total() int {
	return c.Low + c.Moderate + c.High + c.Contraindicated
}

// InteractionReport is the aggregate output of the interaction checker.
type InteractionReport struct {
	Warnings        []InteractionWarning `json:"warnings"`
	Count           int                  `json:"count"`
	HasInteractions bool                 `json:"has_interactions"`
	SeverityLevels  SeverityCounts       `json:"severity_levels"`
}

// PrescriptionItem is one line of a draft prescription under review.
type PrescriptionItem struct {
	MedicineName string `json:"medicine_name"`
	Strength     string `json:"strength,omitempty"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Route        string `json:"route,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

// IsComplete reports whether the item carries full dosing information.
func (i *PrescriptionItem) IsComplete() bool {
	return i.Dosage != "" && i.Frequency != "" && i.Route != "" && i.Duration != ""
}

// OptimizationSuggestion is process-level guidance from the optimizer,
// e.g. a missing-dosage fill-in. Distinct from clinical warnings.
type OptimizationSuggestion struct {
	MedicineName string            `json:"medicine_name"`
	Message      string            `json:"message"`
	Proposed     *DosageSuggestion `json:"proposed,omitempty"`
}

// OptimizationImprovement flags a structural issue with the draft, e.g.
// two items from the same therapeutic category.
type OptimizationImprovement struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Medicines []string `json:"medicines,omitempty"`
}

// Engine event types emitted by the optimizer for the caller to publish.
// The engine itself performs no side effects.
const (
	EventPrescriptionReviewed      = "prescription.reviewed"
	EventInteractionContraindicated = "interaction.contraindicated"
	EventAlternativesProposed      = "alternatives.proposed"
)

// EngineEvent is a side-effect request the caller may act on (notify,
// audit, queue). Emitting is entirely the caller's responsibility.
type EngineEvent struct {
	Type         string    `json:"type"`
	MedicineName string    `json:"medicine_name,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// OptimizationResult is the aggregate review of a draft prescription.
// Sections that could not be computed are listed in FailedSections and
// the remaining sections are still populated: partial results are
// deliberate for advisory data.
type OptimizationResult struct {
	Warnings             []InteractionWarning      `json:"warnings"`
	Suggestions          []OptimizationSuggestion  `json:"suggestions"`
	Improvements         []OptimizationImprovement `json:"improvements"`
	AlternativeMedicines []MedicineSuggestion      `json:"alternative_medicines,omitempty"`
	Events               []EngineEvent             `json:"events,omitempty"`
	FailedSections       []string                  `json:"failed_sections,omitempty"`
	HasWarnings          bool                      `json:"has_warnings"`
	HasSuggestions       bool                      `json:"has_suggestions"`
	HasImprovements      bool                      `json:"has_improvements"`
	HasAlternatives      bool                      `json:"has_alternatives"`
}

// Finalize computes the convenience booleans from section non-emptiness.
func (r *OptimizationResult) Finalize() {
	r.HasWarnings = len(r.Warnings) > 0
	r.HasSuggestions = len(r.Suggestions) > 0
	r.HasImprovements = len(r.Improvements) > 0
	r.HasAlternatives = len(r.AlternativeMedicines) > 0
}

// PatientRecord is the patient data the engine reads through the
// PatientReader collaborator.
type PatientRecord struct {
	ID                  string   `json:"id"`
	Age                 int      `json:"age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	ExistingMedications []string `json:"existing_medications"`
	Allergies           []string `json:"allergies"`
}

// Context converts the stored record into a per-request patient context.
func (p *PatientRecord) Context() PatientContext {
	return PatientContext{
		Age:                 p.Age,
		Gender:              p.Gender,
		ExistingMedications: p.ExistingMedications,
		Allergies:           p.Allergies,
	}
}
