package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// CatalogRepository reads the medicine catalog from PostgreSQL.
type CatalogRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *pgxpool.Pool, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: logger,
	}
}

const medicineSelect = `
	SELECT id, name, generic_name, brand_name, category, form, strength, route,
		   indications, contraindications, side_effects, interactions, dosage_text,
		   is_prescription, is_controlled, is_active
	FROM medicines`

func scanMedicineRow(row pgx.Row) (*domain.MedicineRecord, error) {
	var m domain.MedicineRecord
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.GenericName,
		&m.BrandName,
		&m.Category,
		&m.Form,
		&m.Strength,
		&m.Route,
		&m.Indications,
		&m.Contraindications,
		&m.SideEffects,
		&m.Interactions,
		&m.DosageText,
		&m.IsPrescription,
		&m.IsControlled,
		&m.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMedicines returns the active catalog records matching the filter.
func (r *CatalogRepository) FindActiveMedicines(ctx context.Context, filter domain.CatalogFilter) ([]*domain.MedicineRecord, error) {
	query := medicineSelect + ` WHERE is_active = TRUE`
	args := []interface{}{}
	argN := 1

	if filter.Category != "" {
		query += fmt.Sprintf(" AND LOWER(category) = LOWER($%d)", argN)
		args = append(args, filter.Category)
		argN++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND LOWER(form) = LOWER($%d)", argN)
		args = append(args, filter.Type)
		argN++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR generic_name ILIKE $%d OR brand_name ILIKE $%d)", argN, argN, argN)
		args = append(args, "%"+filter.Search+"%")
		argN++
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"category": filter.Category,
			"type":     filter.Type,
			"error":    err,
		}).Error("Failed to query medicines")
		return nil, fmt.Errorf("querying medicines: %w", err)
	}
	defer rows.Close()

	var medicines []*domain.MedicineRecord
	for rows.Next() {
		m, err := scanMedicineRow(rows)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"error": err,
			}).Error("Failed to scan medicine row")
			return nil, fmt.Errorf("scanning medicine row: %w", err)
		}
		medicines = append(medicines, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medicine rows: %w", err)
	}

	return medicines, nil
}

// GetByName resolves a medicine by case-insensitive name, generic name or
// brand name, falling back to an unambiguous prefix match.
func (r *CatalogRepository) GetByName(ctx context.Context, name string) (*domain.MedicineRecord, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, domain.NewNotFoundError("medicine", name)
	}

	query := medicineSelect + `
		WHERE LOWER(name) = LOWER($1) OR LOWER(generic_name) = LOWER($1) OR LOWER(brand_name) = LOWER($1)
		LIMIT 1`

	m, err := scanMedicineRow(r.db.QueryRow(ctx, query, trimmed))
	if err == nil {
		return m, nil
	}
	if err != pgx.ErrNoRows {
		r.log.WithFields(logrus.Fields{
			"name":  trimmed,
			"error": err,
		}).Error("Failed to get medicine by name")
		return nil, fmt.Errorf("getting medicine by name: %w", err)
	}

	// Prefix fallback, accepted only when unambiguous.
	rows, err := r.db.Query(ctx, medicineSelect+" WHERE name ILIKE $1 LIMIT 2", trimmed+"%")
	if err != nil {
		return nil, fmt.Errorf("getting medicine by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*domain.MedicineRecord
	for rows.Next() {
		m, err := scanMedicineRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medicine row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medicine rows: %w", err)
	}

	if len(matches) != 1 {
		return nil, domain.NewNotFoundError("medicine", name)
	}
	return matches[0], nil
}
