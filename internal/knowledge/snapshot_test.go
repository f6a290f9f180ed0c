package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic-suggestion-engine/internal/domain"
)

func testCatalog() []*domain.MedicineRecord {
	return []*domain.MedicineRecord{
		{
			ID: "med-1", Name: "Amoxicillin", GenericName: "Amoxicillin",
			BrandName: "Amoxil", Category: "Antibiotic", Form: "Capsule",
			Indications: []string{"Bacterial infection"}, IsActive: true,
		},
		{
			ID: "med-2", Name: "Ibuprofen", Category: "NSAID", Form: "Tablet",
			Indications: []string{"Pain", "Inflammation", "Fever"}, IsActive: true,
		},
		{
			ID: "med-3", Name: "Warfarin", Category: "Anticoagulant", Form: "Tablet",
			Indications: []string{"Thrombosis"}, IsActive: true,
		},
		{
			ID: "med-4", Name: "Phenacetin", Category: "Analgesic", Form: "Tablet",
			Indications: []string{"Pain"}, IsActive: false,
		},
	}
}

func testRules() []domain.InteractionWarning {
	return []domain.InteractionWarning{
		{
			Medications: []string{"Warfarin", "Ibuprofen"},
			Severity:    domain.SEVERITY_HIGH,
			Description: "Increased bleeding risk",
		},
		{
			Medications: []string{"Warfarin", "Aspirin"},
			Severity:    domain.SEVERITY_HIGH,
			Description: "Increased bleeding risk",
		},
	}
}

func TestSnapshot_FindActiveMedicines(t *testing.T) {
	snapshot := NewSnapshot(testCatalog(), testRules())
	ctx := context.Background()

	t.Run("excludes inactive records", func(t *testing.T) {
		medicines, err := snapshot.FindActiveMedicines(ctx, domain.CatalogFilter{})
		require.NoError(t, err)
		assert.Len(t, medicines, 3)
		for _, m := range medicines {
			assert.True(t, m.IsActive)
		}
	})

	t.Run("category filter is case-insensitive", func(t *testing.T) {
		medicines, err := snapshot.FindActiveMedicines(ctx, domain.CatalogFilter{Category: "nsaid"})
		require.NoError(t, err)
		require.Len(t, medicines, 1)
		assert.Equal(t, "Ibuprofen", medicines[0].Name)
	})

	t.Run("type filter matches form", func(t *testing.T) {
		medicines, err := snapshot.FindActiveMedicines(ctx, domain.CatalogFilter{Type: "capsule"})
		require.NoError(t, err)
		require.Len(t, medicines, 1)
		assert.Equal(t, "Amoxicillin", medicines[0].Name)
	})

	t.Run("search matches brand name", func(t *testing.T) {
		medicines, err := snapshot.FindActiveMedicines(ctx, domain.CatalogFilter{Search: "amoxil"})
		require.NoError(t, err)
		require.Len(t, medicines, 1)
		assert.Equal(t, "Amoxicillin", medicines[0].Name)
	})

	t.Run("results sorted by name", func(t *testing.T) {
		medicines, err := snapshot.FindActiveMedicines(ctx, domain.CatalogFilter{})
		require.NoError(t, err)
		for i := 1; i < len(medicines); i++ {
			assert.LessOrEqual(t, medicines[i-1].Name, medicines[i].Name)
		}
	})
}

func TestSnapshot_GetByName(t *testing.T) {
	snapshot := NewSnapshot(testCatalog(), nil)
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		m, err := snapshot.GetByName(ctx, "Ibuprofen")
		require.NoError(t, err)
		assert.Equal(t, "med-2", m.ID)
	})

	t.Run("brand name match", func(t *testing.T) {
		m, err := snapshot.GetByName(ctx, "amoxil")
		require.NoError(t, err)
		assert.Equal(t, "med-1", m.ID)
	})

	t.Run("unambiguous prefix match", func(t *testing.T) {
		m, err := snapshot.GetByName(ctx, "Warf")
		require.NoError(t, err)
		assert.Equal(t, "med-3", m.ID)
	})

	t.Run("unknown name is not found", func(t *testing.T) {
		_, err := snapshot.GetByName(ctx, "Paracetamol")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("empty name is not found", func(t *testing.T) {
		_, err := snapshot.GetByName(ctx, "  ")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("inactive records still resolve", func(t *testing.T) {
		m, err := snapshot.GetByName(ctx, "Phenacetin")
		require.NoError(t, err)
		assert.False(t, m.IsActive)
	})
}

func TestSnapshot_FindRules(t *testing.T) {
	snapshot := NewSnapshot(testCatalog(), testRules())
	ctx := context.Background()

	t.Run("finds known pairs regardless of order", func(t *testing.T) {
		forward, err := snapshot.FindRules(ctx, []string{"Warfarin", "Ibuprofen"})
		require.NoError(t, err)
		reversed, err := snapshot.FindRules(ctx, []string{"ibuprofen", "WARFARIN"})
		require.NoError(t, err)

		require.Len(t, forward, 1)
		assert.Equal(t, forward, reversed)
		assert.Equal(t, domain.SEVERITY_HIGH, forward[0].Severity)
	})

	t.Run("unknown pairs yield nothing", func(t *testing.T) {
		warnings, err := snapshot.FindRules(ctx, []string{"Amoxicillin", "Ibuprofen"})
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("three medications check all pairs", func(t *testing.T) {
		warnings, err := snapshot.FindRules(ctx, []string{"Warfarin", "Aspirin", "Ibuprofen"})
		require.NoError(t, err)
		assert.Len(t, warnings, 2)
	})

	t.Run("duplicates are collapsed", func(t *testing.T) {
		warnings, err := snapshot.FindRules(ctx, []string{"Warfarin", "warfarin", "Ibuprofen"})
		require.NoError(t, err)
		assert.Len(t, warnings, 1)
	})
}

func TestSnapshot_Accessors(t *testing.T) {
	snapshot := NewSnapshot(testCatalog(), testRules())

	assert.Equal(t, 4, snapshot.Size())
	assert.Equal(t, 2, snapshot.RuleCount())
	assert.False(t, snapshot.LoadedAt().IsZero())
	assert.Len(t, snapshot.Medicines(), 4)
	assert.Len(t, snapshot.Rules(), 2)
}
