package knowledge

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// ResilientKnowledgeBase wraps the catalog, interaction and patient
// readers with circuit breakers. When a breaker is open the wrapped call
// is not attempted and a DependencyError is returned immediately, which
// the optimizer downgrades to a failed section instead of aborting.
type ResilientKnowledgeBase struct {
	catalog      domain.CatalogReader
	interactions domain.InteractionSource
	patients     domain.PatientReader
	logger       *logrus.Logger

	catalogBreaker     *gobreaker.CircuitBreaker
	interactionBreaker *gobreaker.CircuitBreaker
	patientBreaker     *gobreaker.CircuitBreaker
}

// NewResilientKnowledgeBase wraps the given readers with one breaker per
// data source, so a failing patient store cannot trip catalog reads.
func NewResilientKnowledgeBase(
	catalog domain.CatalogReader,
	interactions domain.InteractionSource,
	patients domain.PatientReader,
	logger *logrus.Logger,
) *ResilientKnowledgeBase {
	return &ResilientKnowledgeBase{
		catalog:            catalog,
		interactions:       interactions,
		patients:           patients,
		logger:             logger,
		catalogBreaker:     newBreaker("catalog", logger),
		interactionBreaker: newBreaker("interactions", logger),
		patientBreaker:     newBreaker("patients", logger),
	}
}

func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Knowledge base circuit breaker state changed")
		},
	})
}

// FindActiveMedicines reads the catalog through its breaker.
func (r *ResilientKnowledgeBase) FindActiveMedicines(ctx context.Context, filter domain.CatalogFilter) ([]*domain.MedicineRecord, error) {
	result, err := r.catalogBreaker.Execute(func() (interface{}, error) {
		return r.catalog.FindActiveMedicines(ctx, filter)
	})
	if err != nil {
		return nil, r.classify("catalog", err)
	}
	return result.([]*domain.MedicineRecord), nil
}

// GetByName resolves a medicine through the catalog breaker. A not-found
// result is a clean answer, not a dependency failure, so it passes
// through untouched and does not count against the breaker.
func (r *ResilientKnowledgeBase) GetByName(ctx context.Context, name string) (*domain.MedicineRecord, error) {
	result, err := r.catalogBreaker.Execute(func() (interface{}, error) {
		m, err := r.catalog.GetByName(ctx, name)
		if domain.IsNotFound(err) {
			return (*domain.MedicineRecord)(nil), nil
		}
		return m, err
	})
	if err != nil {
		return nil, r.classify("catalog", err)
	}
	m := result.(*domain.MedicineRecord)
	if m == nil {
		return nil, domain.NewNotFoundError("medicine", name)
	}
	return m, nil
}

// FindRules reads the interaction rule table through its breaker.
func (r *ResilientKnowledgeBase) FindRules(ctx context.Context, medicationNames []string) ([]domain.InteractionWarning, error) {
	result, err := r.interactionBreaker.Execute(func() (interface{}, error) {
		return r.interactions.FindRules(ctx, medicationNames)
	})
	if err != nil {
		return nil, r.classify("interactions", err)
	}
	return result.([]domain.InteractionWarning), nil
}

// GetPatient reads the patient store through its breaker.
func (r *ResilientKnowledgeBase) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	result, err := r.patientBreaker.Execute(func() (interface{}, error) {
		p, err := r.patients.GetPatient(ctx, id)
		if domain.IsNotFound(err) {
			return (*domain.PatientRecord)(nil), nil
		}
		return p, err
	})
	if err != nil {
		return nil, r.classify("patients", err)
	}
	p := result.(*domain.PatientRecord)
	if p == nil {
		return nil, domain.NewNotFoundError("patient", id)
	}
	return p, nil
}

// BreakerStates reports the current state of each breaker, for health
// reporting.
func (r *ResilientKnowledgeBase) BreakerStates() map[string]string {
	return map[string]string{
		"catalog":      r.catalogBreaker.State().String(),
		"interactions": r.interactionBreaker.State().String(),
		"patients":     r.patientBreaker.State().String(),
	}
}

func (r *ResilientKnowledgeBase) classify(source string, err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		r.logger.WithFields(logrus.Fields{
			"source": source,
		}).Warn("Knowledge base read rejected by open circuit breaker")
	}
	return domain.NewDependencyError(source, err)
}
