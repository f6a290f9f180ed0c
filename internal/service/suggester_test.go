package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic-suggestion-engine/internal/domain"
)

func newTestSuggester(t *testing.T) *MedicineSuggester {
	t.Helper()
	return NewMedicineSuggester(testKnowledgeBase(), testMatcher(t), testEngineConfig(), testLogger())
}

func TestMedicineSuggester_ValidationError(t *testing.T) {
	suggester := newTestSuggester(t)

	_, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{})
	assert.True(t, domain.IsValidation(err))
}

func TestMedicineSuggester_AllergyExclusion(t *testing.T) {
	suggester := newTestSuggester(t)

	// Penicillin allergy must exclude the penicillin-class antibiotic
	// entirely while the unrelated analgesic may still appear.
	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Diagnosis: "Upper respiratory infection",
		Symptoms:  []string{"fever", "headache"},
		Patient: domain.PatientContext{
			Age:       35,
			Allergies: []string{"Penicillin"},
		},
	})
	require.NoError(t, err)

	names := suggestionNames(resp.Suggestions)
	assert.NotContains(t, names, "Amoxicillin")
	assert.Contains(t, names, "Paracetamol")
}

func TestMedicineSuggester_DirectAllergyExclusion(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"fever"},
		Patient: domain.PatientContext{
			Allergies: []string{"acetaminophen"}, // generic name, different case
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, suggestionNames(resp.Suggestions), "Paracetamol")
}

func TestMedicineSuggester_InactiveNeverSuggested(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "fever"},
	})
	require.NoError(t, err)
	assert.NotContains(t, suggestionNames(resp.Suggestions), "Phenacetin")
}

func TestMedicineSuggester_SortedDeterministically(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "inflammation", "fever", "headache"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Suggestions)

	for i := 1; i < len(resp.Suggestions); i++ {
		prev, cur := resp.Suggestions[i-1], resp.Suggestions[i]
		if prev.Confidence == cur.Confidence {
			assert.Less(t, prev.MedicineName, cur.MedicineName)
		} else {
			assert.Greater(t, prev.Confidence, cur.Confidence)
		}
	}

	// Idempotence: identical input, identical output.
	again, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "inflammation", "fever", "headache"},
	})
	require.NoError(t, err)
	assert.Equal(t, resp.Suggestions, again.Suggestions)
}

func TestMedicineSuggester_ConfidenceBounds(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "inflammation", "fever", "headache"},
		Patient: domain.PatientContext{
			ExistingMedications: []string{"Warfarin"},
		},
	})
	require.NoError(t, err)
	for _, s := range resp.Suggestions {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestMedicineSuggester_InteractionPenalty(t *testing.T) {
	suggester := newTestSuggester(t)

	clean, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "inflammation"},
	})
	require.NoError(t, err)

	penalized, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "inflammation"},
		Patient: domain.PatientContext{
			ExistingMedications: []string{"Warfarin"},
		},
	})
	require.NoError(t, err)

	cleanIbu := findSuggestion(clean.Suggestions, "Ibuprofen")
	penalizedIbu := findSuggestion(penalized.Suggestions, "Ibuprofen")
	require.NotNil(t, cleanIbu)
	require.NotNil(t, penalizedIbu, "interacting candidate is penalized, not dropped")

	assert.InDelta(t, cleanIbu.Confidence-0.3, penalizedIbu.Confidence, 0.0001)
	assert.NotEmpty(t, penalizedIbu.Warnings)
}

func TestMedicineSuggester_MinConfidenceThreshold(t *testing.T) {
	config := testEngineConfig()
	config.MinConfidence = 0.9
	suggester := NewMedicineSuggester(testKnowledgeBase(), testMatcher(t), config, testLogger())

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain"},
	})
	require.NoError(t, err)
	for _, s := range resp.Suggestions {
		assert.Greater(t, s.Confidence, 0.9)
	}
}

func TestMedicineSuggester_ControlledSubstanceWarning(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Diagnosis: "severe pain",
	})
	require.NoError(t, err)

	tramadol := findSuggestion(resp.Suggestions, "Tramadol")
	require.NotNil(t, tramadol)
	assert.NotEmpty(t, tramadol.Warnings)
}

func TestMedicineSuggester_LimitCap(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain", "fever"},
		Limit:    1,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, 1)
	assert.Equal(t, 1, resp.Count)
}

func TestMedicineSuggester_CategoryFilter(t *testing.T) {
	suggester := newTestSuggester(t)

	resp, err := suggester.Suggest(context.Background(), &domain.SuggestionRequest{
		Symptoms: []string{"pain"},
		Category: "NSAID",
	})
	require.NoError(t, err)
	for _, s := range resp.Suggestions {
		assert.Equal(t, "NSAID", s.Category)
	}
}

func suggestionNames(suggestions []domain.MedicineSuggestion) []string {
	names := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		names = append(names, s.MedicineName)
	}
	return names
}

func findSuggestion(suggestions []domain.MedicineSuggestion, name string) *domain.MedicineSuggestion {
	for i := range suggestions {
		if suggestions[i].MedicineName == name {
			return &suggestions[i]
		}
	}
	return nil
}
