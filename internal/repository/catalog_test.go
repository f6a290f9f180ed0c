package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinic-suggestion-engine/internal/database"
	"github.com/clinic-suggestion-engine/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	migrationRunner, err := database.NewMigrationRunner(database.URL(config), "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func insertMedicine(t *testing.T, db *database.DB, m *domain.MedicineRecord) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO medicines (
			id, name, generic_name, brand_name, category, form, strength, route,
			indications, contraindications, side_effects, interactions, dosage_text,
			is_prescription, is_controlled, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		m.ID, m.Name, m.GenericName, m.BrandName, m.Category, m.Form, m.Strength, m.Route,
		m.Indications, m.Contraindications, m.SideEffects, m.Interactions, m.DosageText,
		m.IsPrescription, m.IsControlled, m.IsActive,
	)
	if err != nil {
		t.Fatalf("Failed to insert medicine: %v", err)
	}
}

func insertRule(t *testing.T, db *database.DB, a, b string, severity domain.Severity, description string) {
	t.Helper()
	na := domain.NormalizeMedicationName(a)
	nb := domain.NormalizeMedicationName(b)
	if na > nb {
		na, nb = nb, na
	}
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO interaction_rules (med_a, med_b, severity, description)
		VALUES ($1, $2, $3, $4)`,
		na, nb, string(severity), description,
	)
	if err != nil {
		t.Fatalf("Failed to insert interaction rule: %v", err)
	}
}

func TestCatalogRepository_FindActiveMedicines(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCatalogRepository(db.Pool, logger)
	ctx := context.Background()

	insertMedicine(t, db, &domain.MedicineRecord{
		ID: "med-1", Name: "Ibuprofen", Category: "NSAID", Form: "Tablet",
		Indications: []string{"Pain", "Fever"}, IsActive: true,
	})
	insertMedicine(t, db, &domain.MedicineRecord{
		ID: "med-2", Name: "Phenacetin", Category: "Analgesic", Form: "Tablet",
		Indications: []string{"Pain"}, IsActive: false,
	})
	insertMedicine(t, db, &domain.MedicineRecord{
		ID: "med-3", Name: "Amoxicillin", BrandName: "Amoxil", Category: "Antibiotic",
		Form: "Capsule", Indications: []string{"Bacterial infection"}, IsActive: true,
	})

	t.Run("excludes inactive", func(t *testing.T) {
		medicines, err := repo.FindActiveMedicines(ctx, domain.CatalogFilter{})
		if err != nil {
			t.Fatalf("FindActiveMedicines failed: %v", err)
		}
		if len(medicines) != 2 {
			t.Fatalf("Expected 2 active medicines, got %d", len(medicines))
		}
	})

	t.Run("category filter", func(t *testing.T) {
		medicines, err := repo.FindActiveMedicines(ctx, domain.CatalogFilter{Category: "nsaid"})
		if err != nil {
			t.Fatalf("FindActiveMedicines failed: %v", err)
		}
		if len(medicines) != 1 || medicines[0].Name != "Ibuprofen" {
			t.Fatalf("Expected Ibuprofen only, got %+v", medicines)
		}
		if len(medicines[0].Indications) != 2 {
			t.Errorf("Expected 2 indications, got %v", medicines[0].Indications)
		}
	})

	t.Run("search filter", func(t *testing.T) {
		medicines, err := repo.FindActiveMedicines(ctx, domain.CatalogFilter{Search: "amox"})
		if err != nil {
			t.Fatalf("FindActiveMedicines failed: %v", err)
		}
		if len(medicines) != 1 || medicines[0].Name != "Amoxicillin" {
			t.Fatalf("Expected Amoxicillin only, got %+v", medicines)
		}
	})
}

func TestCatalogRepository_GetByName(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCatalogRepository(db.Pool, logger)
	ctx := context.Background()

	insertMedicine(t, db, &domain.MedicineRecord{
		ID: "med-1", Name: "Amoxicillin", BrandName: "Amoxil",
		Category: "Antibiotic", IsActive: true,
	})

	t.Run("brand name match", func(t *testing.T) {
		m, err := repo.GetByName(ctx, "amoxil")
		if err != nil {
			t.Fatalf("GetByName failed: %v", err)
		}
		if m.ID != "med-1" {
			t.Errorf("Expected med-1, got %s", m.ID)
		}
	})

	t.Run("prefix match", func(t *testing.T) {
		m, err := repo.GetByName(ctx, "amox")
		if err != nil {
			t.Fatalf("GetByName failed: %v", err)
		}
		if m.ID != "med-1" {
			t.Errorf("Expected med-1, got %s", m.ID)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := repo.GetByName(ctx, "paracetamol")
		if !domain.IsNotFound(err) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})
}

func TestInteractionRepository_FindRules(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewInteractionRepository(db.Pool, logger)
	ctx := context.Background()

	insertRule(t, db, "Warfarin", "Aspirin", domain.SEVERITY_HIGH, "Increased bleeding risk")
	insertRule(t, db, "Warfarin", "Ibuprofen", domain.SEVERITY_HIGH, "Increased bleeding risk")

	t.Run("order-independent lookup", func(t *testing.T) {
		forward, err := repo.FindRules(ctx, []string{"Warfarin", "Aspirin"})
		if err != nil {
			t.Fatalf("FindRules failed: %v", err)
		}
		reversed, err := repo.FindRules(ctx, []string{"aspirin", "WARFARIN"})
		if err != nil {
			t.Fatalf("FindRules failed: %v", err)
		}
		if len(forward) != 1 || len(reversed) != 1 {
			t.Fatalf("Expected 1 warning each way, got %d and %d", len(forward), len(reversed))
		}
		if forward[0].Key() != reversed[0].Key() {
			t.Errorf("Expected identical warnings regardless of order")
		}
	})

	t.Run("three medications", func(t *testing.T) {
		warnings, err := repo.FindRules(ctx, []string{"Warfarin", "Aspirin", "Ibuprofen"})
		if err != nil {
			t.Fatalf("FindRules failed: %v", err)
		}
		if len(warnings) != 2 {
			t.Fatalf("Expected 2 warnings, got %d", len(warnings))
		}
	})

	t.Run("unknown pair yields nothing", func(t *testing.T) {
		warnings, err := repo.FindRules(ctx, []string{"Aspirin", "Ibuprofen"})
		if err != nil {
			t.Fatalf("FindRules failed: %v", err)
		}
		if len(warnings) != 0 {
			t.Fatalf("Expected no warnings, got %d", len(warnings))
		}
	})

	t.Run("fewer than two names", func(t *testing.T) {
		warnings, err := repo.FindRules(ctx, []string{"Warfarin"})
		if err != nil {
			t.Fatalf("FindRules failed: %v", err)
		}
		if warnings != nil {
			t.Fatalf("Expected nil, got %v", warnings)
		}
	})
}
