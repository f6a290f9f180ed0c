package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// InteractionRepository reads the pairwise interaction rule table from
// PostgreSQL. Rules are stored with normalized names and med_a < med_b,
// so lookup is order-independent by construction.
type InteractionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *pgxpool.Pool, logger *logrus.Logger) *InteractionRepository {
	return &InteractionRepository{
		db:  db,
		log: logger,
	}
}

// FindRules returns interaction warnings for every unordered pair of the
// given medication names that has a rule. A single query fetches all
// rules touching the name set; pairs not fully inside the set are
// filtered out afterwards.
func (r *InteractionRepository) FindRules(ctx context.Context, medicationNames []string) ([]domain.InteractionWarning, error) {
	names := normalizeNames(medicationNames)
	if len(names) < 2 {
		return nil, nil
	}

	query := `
		SELECT med_a, med_b, severity, description, recommendation
		FROM interaction_rules
		WHERE med_a = ANY($1) AND med_b = ANY($1)`

	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"medications": len(names),
			"error":       err,
		}).Error("Failed to query interaction rules")
		return nil, fmt.Errorf("querying interaction rules: %w", err)
	}
	defer rows.Close()

	var warnings []domain.InteractionWarning
	for rows.Next() {
		var w domain.InteractionWarning
		var medA, medB, severity string
		if err := rows.Scan(&medA, &medB, &severity, &w.Description, &w.Recommendation); err != nil {
			r.log.WithFields(logrus.Fields{
				"error": err,
			}).Error("Failed to scan interaction rule row")
			return nil, fmt.Errorf("scanning interaction rule row: %w", err)
		}
		w.Medications = []string{medA, medB}
		w.Severity = domain.Severity(severity)
		warnings = append(warnings, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interaction rule rows: %w", err)
	}

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Key() < warnings[j].Key() })
	return warnings, nil
}

// normalizeNames trims, case-folds and deduplicates medication names.
func normalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		norm := domain.NormalizeMedicationName(n)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
