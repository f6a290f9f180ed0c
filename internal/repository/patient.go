package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// PatientRepository reads patient medication history and allergies. It is
// the engine's only view of patient data and is read-only: patient
// records are owned by the clinic system, not the engine.
type PatientRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *sql.DB, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

// GetPatient retrieves a patient's demographics, existing medications and
// allergies. Returns a NotFoundError when the patient does not exist.
func (r *PatientRepository) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	query := `
		SELECT id, age, gender, existing_medications, allergies
		FROM patients
		WHERE id = $1`

	var patient domain.PatientRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&patient.ID,
		&patient.Age,
		&patient.Gender,
		pq.Array(&patient.ExistingMedications),
		pq.Array(&patient.Allergies),
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("patient", id)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient")
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	return &patient, nil
}
