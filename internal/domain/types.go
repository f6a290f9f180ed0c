// Package domain contains the core business entities and types for the
// clinical suggestion engine: the medicine catalog model, patient context,
// interaction severities and the validation rules that guard them.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Severity represents the clinical risk level of a drug-drug interaction.
// The set is fixed and ordered: LOW < MODERATE < HIGH < CONTRAINDICATED.
type Severity string

const (
	SEVERITY_LOW             Severity = "LOW"
	SEVERITY_MODERATE        Severity = "MODERATE"
	SEVERITY_HIGH            Severity = "HIGH"
	SEVERITY_CONTRAINDICATED Severity = "CONTRAINDICATED"
)

// AgeBand represents the dosing age band of a patient.
type AgeBand string

const (
	AGE_PEDIATRIC  AgeBand = "PEDIATRIC"
	AGE_ADOLESCENT AgeBand = "ADOLESCENT"
	AGE_ADULT      AgeBand = "ADULT"
	AGE_GERIATRIC  AgeBand = "GERIATRIC"
)

// RegimenAudience represents the population a dosage regimen is written for.
type RegimenAudience string

const (
	AUDIENCE_ANY       RegimenAudience = "ANY"
	AUDIENCE_PEDIATRIC RegimenAudience = "PEDIATRIC"
	AUDIENCE_ADULT     RegimenAudience = "ADULT"
	AUDIENCE_GERIATRIC RegimenAudience = "GERIATRIC"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSeverity = errors.New("invalid interaction severity")
	ErrInvalidAgeBand  = errors.New("invalid age band")
)

// IsValid validates that the Severity is one of the four known levels.
// Only valid severities may reach clinical decision-making; a
// CONTRAINDICATED severity must never be silently downgraded.
func (s Severity) IsValid() bool {
	switch s {
	case SEVERITY_LOW, SEVERITY_MODERATE, SEVERITY_HIGH, SEVERITY_CONTRAINDICATED:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the ordinal risk position of the severity, LOW being lowest.
// Unknown severities rank above CONTRAINDICATED so they are never ignored.
func (s Severity) Rank() int {
	switch s {
	case SEVERITY_LOW:
		return 0
	case SEVERITY_MODERATE:
		return 1
	case SEVERITY_HIGH:
		return 2
	case SEVERITY_CONTRAINDICATED:
		return 3
	default:
		return 4
	}
}

// RequiresReview reports whether a warning of this severity should trigger
// an alternative-medicine search during prescription optimization.
func (s Severity) RequiresReview() bool {
	return s == SEVERITY_HIGH || s == SEVERITY_CONTRAINDICATED
}

// IsValid validates the age band.
func (ab AgeBand) IsValid() bool {
	switch ab {
	case AGE_PEDIATRIC, AGE_ADOLESCENT, AGE_ADULT, AGE_GERIATRIC:
		return true
	default:
		return false
	}
}

// AgeBandFor maps a patient age in years to its dosing band.
// Band boundaries: pediatric < 12, adolescent 12-17, adult 18-64, geriatric >= 65.
func AgeBandFor(age int) AgeBand {
	switch {
	case age < 12:
		return AGE_PEDIATRIC
	case age < 18:
		return AGE_ADOLESCENT
	case age < 65:
		return AGE_ADULT
	default:
		return AGE_GERIATRIC
	}
}

// MedicineRecord represents one entry of the medicine catalog. It is
// immutable reference data: the engine only reads it, catalog maintenance
// happens elsewhere.
type MedicineRecord struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	GenericName       string   `json:"generic_name,omitempty"`
	BrandName         string   `json:"brand_name,omitempty"`
	Category          string   `json:"category"`
	Form              string   `json:"form,omitempty"`
	Strength          string   `json:"strength,omitempty"`
	Route             string   `json:"route,omitempty"`
	Indications       []string `json:"indications"`
	Contraindications []string `json:"contraindications,omitempty"`
	SideEffects       []string `json:"side_effects,omitempty"`
	Interactions      []string `json:"interactions,omitempty"`
	DosageText        string   `json:"dosage_text,omitempty"`
	IsPrescription    bool     `json:"is_prescription"`
	IsControlled      bool     `json:"is_controlled"`
	IsActive          bool     `json:"is_active"`
}

// Validate ensures the catalog record meets the minimum requirements for
// participating in suggestions.
func (m *MedicineRecord) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("medicine validation: %w", errors.New("name is required"))
	}
	if m.Category == "" {
		return fmt.Errorf("medicine validation: %w", errors.New("category is required"))
	}
	return nil
}

// MatchesName reports whether the given name matches this record's name,
// generic name or brand name, case-insensitively.
func (m *MedicineRecord) MatchesName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	return strings.ToLower(m.Name) == n ||
		(m.GenericName != "" && strings.ToLower(m.GenericName) == n) ||
		(m.BrandName != "" && strings.ToLower(m.BrandName) == n)
}

// PatientContext is the ephemeral per-request patient input. It is never
// persisted by the engine.
type PatientContext struct {
	Age                 int      `json:"age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	ExistingMedications []string `json:"existing_medications,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
}

// AgeBand returns the dosing band for the patient, defaulting to adult
// when no age was supplied.
func (p *PatientContext) AgeBand() AgeBand {
	if p.Age <= 0 {
		return AGE_ADULT
	}
	return AgeBandFor(p.Age)
}

// IsAllergicTo reports whether any of the patient's recorded allergies
// matches the medicine's name, generic name or brand name, or appears in
// its contraindication list (covering drug-class allergies such as
// penicillin against penicillin-class antibiotics). Allergy is an
// absolute contraindication: matching medicines are excluded entirely.
func (p *PatientContext) IsAllergicTo(m *MedicineRecord) bool {
	for _, allergy := range p.Allergies {
		if m.MatchesName(allergy) {
			return true
		}
		a := NormalizeMedicationName(allergy)
		if a == "" {
			continue
		}
		for _, contra := range m.Contraindications {
			if strings.Contains(strings.ToLower(contra), a) {
				return true
			}
		}
	}
	return false
}

// NormalizeMedicationName canonicalizes a medication name for pairwise
// interaction lookup: trimmed and case-folded.
func NormalizeMedicationName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PairKey builds the order-independent lookup key for a medication pair.
// The same two names always yield the same key regardless of argument order.
func PairKey(a, b string) string {
	na, nb := NormalizeMedicationName(a), NormalizeMedicationName(b)
	if na > nb {
		na, nb = nb, na
	}
	return na + "|" + nb
}
