package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/clinic-suggestion-engine/internal/domain"
	"github.com/clinic-suggestion-engine/internal/knowledge"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func testEngineConfig() domain.EngineConfig {
	return domain.EngineConfig{
		InteractionPenalty: 0.3,
		MinConfidence:      0.1,
		MaxSuggestions:     10,
		MatchStrategy:      knowledge.StrategyTokenOverlap,
		MatcherCacheSize:   64,
	}
}

// testKnowledgeBase builds the in-memory knowledge base used across the
// service tests: a small formulary plus the standard interaction rules.
func testKnowledgeBase() *knowledge.Snapshot {
	medicines := []*domain.MedicineRecord{
		{
			ID: "med-amoxicillin", Name: "Amoxicillin", GenericName: "Amoxicillin",
			BrandName: "Amoxil", Category: "Antibiotic", Form: "Capsule", Route: "oral",
			Indications:       []string{"Bacterial infection", "Upper respiratory infection"},
			Contraindications: []string{"Penicillin allergy"},
			DosageText:        "Adults: 500mg every 8 hours for 7 days. Children: 25mg/kg/day divided every 12 hours for 7 days.",
			IsPrescription:    true, IsActive: true,
		},
		{
			ID: "med-paracetamol", Name: "Paracetamol", GenericName: "Acetaminophen",
			Category: "Analgesic", Form: "Tablet", Route: "oral",
			Indications: []string{"Fever", "Pain", "Headache"},
			DosageText:  "Adults: 500mg every 6 hours as needed. Children: 15mg/kg every 6 hours as needed.",
			IsActive:    true,
		},
		{
			ID: "med-ibuprofen", Name: "Ibuprofen", Category: "NSAID", Form: "Tablet", Route: "oral",
			Indications: []string{"Pain", "Inflammation", "Fever"},
			DosageText:  "Adults: 400mg every 6 hours as needed for 5 days.",
			IsActive:    true,
		},
		{
			ID: "med-naproxen", Name: "Naproxen", Category: "NSAID", Form: "Tablet", Route: "oral",
			Indications: []string{"Pain", "Inflammation", "Arthritis"},
			DosageText:  "Adults: 250mg every 12 hours for 7 days.",
			IsActive:    true,
		},
		{
			ID: "med-warfarin", Name: "Warfarin", Category: "Anticoagulant", Form: "Tablet", Route: "oral",
			Indications:    []string{"Thrombosis", "Atrial fibrillation"},
			DosageText:     "Adults: 5mg once daily.",
			IsPrescription: true, IsActive: true,
		},
		{
			ID: "med-lisinopril", Name: "Lisinopril", Category: "ACE Inhibitor", Form: "Tablet", Route: "oral",
			Indications:    []string{"Hypertension", "Heart failure"},
			DosageText:     "Adults: 10mg once daily. Elderly: 2.5mg once daily initially.",
			IsPrescription: true, IsActive: true,
		},
		{
			ID: "med-aspirin", Name: "Aspirin", GenericName: "Acetylsalicylic acid",
			Category: "Antiplatelet", Form: "Tablet", Route: "oral",
			Indications: []string{"Cardiovascular prophylaxis", "Pain", "Fever"},
			DosageText:  "Adults: 81mg once daily.",
			IsActive:    true,
		},
		{
			ID: "med-tramadol", Name: "Tramadol", Category: "Opioid Analgesic", Form: "Tablet", Route: "oral",
			Indications:    []string{"Moderate pain", "Severe pain"},
			DosageText:     "Adults: 50mg every 6 hours as needed for 3 days.",
			IsPrescription: true, IsControlled: true, IsActive: true,
		},
		{
			ID: "med-discontinued", Name: "Phenacetin", Category: "Analgesic", Form: "Tablet",
			Indications: []string{"Pain", "Fever"},
			IsActive:    false,
		},
	}

	rules := []domain.InteractionWarning{
		{
			Medications: []string{"Warfarin", "Aspirin"},
			Severity:    domain.SEVERITY_HIGH,
			Description: "Increased bleeding risk",
		},
		{
			Medications: []string{"Warfarin", "Ibuprofen"},
			Severity:    domain.SEVERITY_MODERATE,
			Description: "NSAIDs potentiate warfarin and raise bleeding risk",
		},
		{
			Medications: []string{"Warfarin", "Phenacetin"},
			Severity:    domain.SEVERITY_CONTRAINDICATED,
			Description: "Do not combine",
		},
		{
			Medications: []string{"Ibuprofen", "Naproxen"},
			Severity:    domain.SEVERITY_MODERATE,
			Description: "Duplicate NSAID therapy increases toxicity",
		},
	}

	return knowledge.NewSnapshot(medicines, rules)
}

func testMatcher(t *testing.T) *knowledge.IndicationMatcher {
	t.Helper()
	matcher, err := knowledge.NewIndicationMatcher(knowledge.NewStrategy(knowledge.StrategyTokenOverlap), 64)
	require.NoError(t, err)
	return matcher
}

// stubPatients is an in-memory PatientReader for optimizer tests.
type stubPatients struct {
	records map[string]*domain.PatientRecord
	err     error
}

func (s *stubPatients) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.records[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("patient", id)
}
