package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// InteractionChecker evaluates a medication list against the pairwise
// interaction rule table. Output is independent of input order and
// severity counts always sum to the warning count. A pair absent from
// the table yields no warning; that silence is a data limitation, never
// a safety claim.
type InteractionChecker struct {
	rules domain.InteractionSource
	log   *logrus.Logger
}

// NewInteractionChecker creates a new interaction checker
func NewInteractionChecker(rules domain.InteractionSource, logger *logrus.Logger) *InteractionChecker {
	return &InteractionChecker{
		rules: rules,
		log:   logger,
	}
}

// Check returns the interaction report for the given medication list.
// Fewer than two distinct medications is a validation error: there is
// nothing pairwise to check.
func (c *InteractionChecker) Check(ctx context.Context, medications []string) (*domain.InteractionReport, error) {
	distinct := distinctMedications(medications)
	if len(distinct) == 0 {
		return nil, domain.NewValidationError("medications", "at least one medication is required", nil)
	}

	c.log.WithFields(logrus.Fields{
		"medications": len(distinct),
	}).Info("Checking medication interactions")

	warnings, err := c.rules.FindRules(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("looking up interaction rules: %w", err)
	}

	// Deterministic order regardless of how the source returned them.
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Key() < warnings[j].Key() })

	report := &domain.InteractionReport{
		Warnings:        warnings,
		Count:           len(warnings),
		HasInteractions: len(warnings) > 0,
	}
	for _, w := range warnings {
		report.SeverityLevels.Add(w.Severity)
	}

	c.log.WithFields(logrus.Fields{
		"warnings":        report.Count,
		"contraindicated": report.SeverityLevels.Contraindicated,
		"high":            report.SeverityLevels.High,
	}).Info("Interaction check completed")

	return report, nil
}

// distinctMedications trims and deduplicates the input case-insensitively
// while keeping the caller's spelling of first occurrence.
func distinctMedications(medications []string) []string {
	seen := make(map[string]bool, len(medications))
	out := make([]string, 0, len(medications))
	for _, m := range medications {
		norm := domain.NormalizeMedicationName(m)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, m)
	}
	return out
}
