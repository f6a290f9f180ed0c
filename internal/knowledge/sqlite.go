package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// SQLiteStore serves the whole knowledge base from a single SQLite file:
// catalog, interaction rules and patients. It backs the standalone (lite)
// deployment mode where no PostgreSQL or Redis is available.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the knowledge database file and
// bootstraps the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the knowledge base tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		generic_name TEXT DEFAULT '',
		brand_name TEXT DEFAULT '',
		category TEXT NOT NULL,
		form TEXT DEFAULT '',
		strength TEXT DEFAULT '',
		route TEXT DEFAULT '',
		indications TEXT DEFAULT '',
		contraindications TEXT DEFAULT '',
		side_effects TEXT DEFAULT '',
		interactions TEXT DEFAULT '',
		dosage_text TEXT DEFAULT '',
		is_prescription INTEGER NOT NULL DEFAULT 0,
		is_controlled INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		UNIQUE(name)
	);

	CREATE TABLE IF NOT EXISTS interaction_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		med_a TEXT NOT NULL,
		med_b TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		recommendation TEXT DEFAULT '',
		UNIQUE(med_a, med_b)
	);

	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		age INTEGER DEFAULT 0,
		gender TEXT DEFAULT '',
		existing_medications TEXT DEFAULT '',
		allergies TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_medicines_category ON medicines(category);
	CREATE INDEX IF NOT EXISTS idx_medicines_active ON medicines(is_active);
	CREATE INDEX IF NOT EXISTS idx_rules_pair ON interaction_rules(med_a, med_b);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMedicine scans a row into a MedicineRecord, splitting the
// semicolon-delimited list columns.
func scanMedicine(s scanner) (*domain.MedicineRecord, error) {
	m := &domain.MedicineRecord{}
	var indications, contraindications, sideEffects, interactions string
	var isPrescription, isControlled, isActive int

	err := s.Scan(
		&m.ID, &m.Name, &m.GenericName, &m.BrandName, &m.Category,
		&m.Form, &m.Strength, &m.Route,
		&indications, &contraindications, &sideEffects, &interactions,
		&m.DosageText, &isPrescription, &isControlled, &isActive,
	)
	if err != nil {
		return nil, err
	}

	m.Indications = splitList(indications)
	m.Contraindications = splitList(contraindications)
	m.SideEffects = splitList(sideEffects)
	m.Interactions = splitList(interactions)
	m.IsPrescription = isPrescription != 0
	m.IsControlled = isControlled != 0
	m.IsActive = isActive != 0
	return m, nil
}

const medicineColumns = `id, name, generic_name, brand_name, category, form, strength, route,
	indications, contraindications, side_effects, interactions, dosage_text,
	is_prescription, is_controlled, is_active`

// FindActiveMedicines returns the active catalog records matching the filter.
func (s *SQLiteStore) FindActiveMedicines(ctx context.Context, filter domain.CatalogFilter) ([]*domain.MedicineRecord, error) {
	query := "SELECT " + medicineColumns + " FROM medicines WHERE is_active = 1"
	args := []interface{}{}

	if filter.Category != "" {
		query += " AND LOWER(category) = LOWER(?)"
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		query += " AND LOWER(form) = LOWER(?)"
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		query += " AND (LOWER(name) LIKE ? OR LOWER(generic_name) LIKE ? OR LOWER(brand_name) LIKE ?)"
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying medicines: %w", err)
	}
	defer rows.Close()

	var medicines []*domain.MedicineRecord
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medicine row: %w", err)
		}
		medicines = append(medicines, m)
	}
	return medicines, rows.Err()
}

// GetByName resolves a medicine by case-insensitive name, generic name or
// brand name, falling back to an unambiguous prefix match.
func (s *SQLiteStore) GetByName(ctx context.Context, name string) (*domain.MedicineRecord, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, domain.NewNotFoundError("medicine", name)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+medicineColumns+` FROM medicines
		 WHERE LOWER(name) = LOWER(?) OR LOWER(generic_name) = LOWER(?) OR LOWER(brand_name) = LOWER(?)
		 LIMIT 1`,
		trimmed, trimmed, trimmed,
	)
	m, err := scanMedicine(row)
	if err == nil {
		return m, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("getting medicine by name: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+medicineColumns+" FROM medicines WHERE LOWER(name) LIKE LOWER(?) LIMIT 2",
		trimmed+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("getting medicine by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*domain.MedicineRecord
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medicine row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, domain.NewNotFoundError("medicine", name)
	}
	return matches[0], nil
}

// FindRules returns interaction warnings for every unordered pair of the
// given names that has a rule. Pairs are stored normalized with
// med_a < med_b, so lookup is order-independent.
func (s *SQLiteStore) FindRules(ctx context.Context, medicationNames []string) ([]domain.InteractionWarning, error) {
	names := dedupeNormalized(medicationNames)

	var warnings []domain.InteractionWarning
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if a > b {
				a, b = b, a
			}

			var w domain.InteractionWarning
			var medA, medB, severity string
			err := s.db.QueryRowContext(ctx,
				"SELECT med_a, med_b, severity, description, recommendation FROM interaction_rules WHERE med_a = ? AND med_b = ?",
				a, b,
			).Scan(&medA, &medB, &severity, &w.Description, &w.Recommendation)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("querying interaction rule: %w", err)
			}

			w.Medications = []string{medA, medB}
			w.Severity = domain.Severity(severity)
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}

// GetPatient resolves a patient's stored medications and allergies.
func (s *SQLiteStore) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	p := &domain.PatientRecord{}
	var meds, allergies string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, age, gender, existing_medications, allergies FROM patients WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Age, &p.Gender, &meds, &allergies)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("patient", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	p.ExistingMedications = splitList(meds)
	p.Allergies = splitList(allergies)
	return p, nil
}

// UpsertMedicine inserts or replaces a catalog record. Used by seeding
// and by catalog maintenance tooling; the engine itself never writes.
func (s *SQLiteStore) UpsertMedicine(ctx context.Context, m *domain.MedicineRecord) error {
	if err := m.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO medicines (
			id, name, generic_name, brand_name, category, form, strength, route,
			indications, contraindications, side_effects, interactions, dosage_text,
			is_prescription, is_controlled, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.GenericName, m.BrandName, m.Category, m.Form, m.Strength, m.Route,
		joinList(m.Indications), joinList(m.Contraindications), joinList(m.SideEffects), joinList(m.Interactions),
		m.DosageText, boolToInt(m.IsPrescription), boolToInt(m.IsControlled), boolToInt(m.IsActive),
	)
	if err != nil {
		return fmt.Errorf("upserting medicine: %w", err)
	}
	return nil
}

// UpsertRule inserts or replaces an interaction rule, normalizing the
// pair so lookups stay order-independent.
func (s *SQLiteStore) UpsertRule(ctx context.Context, w *domain.InteractionWarning) error {
	if err := w.Validate(); err != nil {
		return err
	}

	a := domain.NormalizeMedicationName(w.Medications[0])
	b := domain.NormalizeMedicationName(w.Medications[1])
	if a > b {
		a, b = b, a
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO interaction_rules (med_a, med_b, severity, description, recommendation)
		VALUES (?, ?, ?, ?, ?)`,
		a, b, string(w.Severity), w.Description, w.Recommendation,
	)
	if err != nil {
		return fmt.Errorf("upserting interaction rule: %w", err)
	}
	return nil
}

// UpsertPatient inserts or replaces a patient record.
func (s *SQLiteStore) UpsertPatient(ctx context.Context, p *domain.PatientRecord) error {
	if p.ID == "" {
		return domain.NewValidationError("id", "patient id is required", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO patients (id, age, gender, existing_medications, allergies)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Age, p.Gender, joinList(p.ExistingMedications), joinList(p.Allergies),
	)
	if err != nil {
		return fmt.Errorf("upserting patient: %w", err)
	}
	return nil
}

// Load reads the full catalog and rule table into a Snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+medicineColumns+" FROM medicines")
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	defer rows.Close()

	var medicines []*domain.MedicineRecord
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medicine row: %w", err)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := s.db.QueryContext(ctx, "SELECT med_a, med_b, severity, description, recommendation FROM interaction_rules")
	if err != nil {
		return nil, fmt.Errorf("loading interaction rules: %w", err)
	}
	defer ruleRows.Close()

	var rules []domain.InteractionWarning
	for ruleRows.Next() {
		var w domain.InteractionWarning
		var medA, medB, severity string
		if err := ruleRows.Scan(&medA, &medB, &severity, &w.Description, &w.Recommendation); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		w.Medications = []string{medA, medB}
		w.Severity = domain.Severity(severity)
		rules = append(rules, w)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	return NewSnapshot(medicines, rules), nil
}

// Health verifies the database file is reachable.
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(v []string) string {
	return strings.Join(v, ";")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
