package knowledge

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// Snapshot is an immutable in-memory view of the knowledge base: the
// medicine catalog plus the pairwise interaction rule table. A snapshot
// is safe for concurrent reads; refreshing means building a new snapshot
// and swapping it at the caller, never mutating an existing one. The
// engine tolerates reading a stale-but-consistent snapshot.
type Snapshot struct {
	medicines  []*domain.MedicineRecord
	byCategory map[string][]*domain.MedicineRecord
	rules      map[string]domain.InteractionWarning
	loadedAt   time.Time
}

// NewSnapshot builds a snapshot from catalog records and interaction
// rules. Records are indexed by category so per-request scans stay
// bounded; rules are keyed by the order-independent medication pair.
func NewSnapshot(medicines []*domain.MedicineRecord, rules []domain.InteractionWarning) *Snapshot {
	s := &Snapshot{
		medicines:  make([]*domain.MedicineRecord, 0, len(medicines)),
		byCategory: make(map[string][]*domain.MedicineRecord),
		rules:      make(map[string]domain.InteractionWarning, len(rules)),
		loadedAt:   time.Now().UTC(),
	}

	for _, m := range medicines {
		if m == nil {
			continue
		}
		s.medicines = append(s.medicines, m)
		cat := strings.ToLower(m.Category)
		s.byCategory[cat] = append(s.byCategory[cat], m)
	}
	sort.Slice(s.medicines, func(i, j int) bool {
		return s.medicines[i].Name < s.medicines[j].Name
	})

	for _, rule := range rules {
		if rule.Validate() != nil {
			continue
		}
		s.rules[rule.Key()] = rule
	}

	return s
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Size returns the number of catalog records in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.medicines)
}

// RuleCount returns the number of interaction rules in the snapshot.
func (s *Snapshot) RuleCount() int {
	return len(s.rules)
}

// Rules returns the interaction rules, for serialization by caches.
func (s *Snapshot) Rules() []domain.InteractionWarning {
	out := make([]domain.InteractionWarning, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Medicines returns the catalog records, for serialization by caches.
func (s *Snapshot) Medicines() []*domain.MedicineRecord {
	return s.medicines
}

// FindActiveMedicines returns the active records matching the filter,
// using the category index when a category filter is present.
func (s *Snapshot) FindActiveMedicines(ctx context.Context, filter domain.CatalogFilter) ([]*domain.MedicineRecord, error) {
	candidates := s.medicines
	if filter.Category != "" {
		candidates = s.byCategory[strings.ToLower(filter.Category)]
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []*domain.MedicineRecord
	for _, m := range candidates {
		if !m.IsActive {
			continue
		}
		if filter.Type != "" && !strings.EqualFold(m.Form, filter.Type) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.GenericName), search) &&
			!strings.Contains(strings.ToLower(m.BrandName), search) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetByName resolves a medicine by exact name, then generic or brand
// name, then case-insensitive prefix, all against active and inactive
// records so dosage lookups for discontinued items still resolve.
func (s *Snapshot) GetByName(ctx context.Context, name string) (*domain.MedicineRecord, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, domain.NewNotFoundError("medicine", name)
	}

	for _, m := range s.medicines {
		if m.MatchesName(trimmed) {
			return m, nil
		}
	}

	// Fuzzy fallback: unambiguous case-insensitive prefix.
	lower := strings.ToLower(trimmed)
	var match *domain.MedicineRecord
	for _, m := range s.medicines {
		if strings.HasPrefix(strings.ToLower(m.Name), lower) {
			if match != nil {
				return nil, domain.NewNotFoundError("medicine", name)
			}
			match = m
		}
	}
	if match != nil {
		return match, nil
	}

	return nil, domain.NewNotFoundError("medicine", name)
}

// FindRules returns the interaction warnings for every unordered pair of
// the given names that has a rule. Unknown pairs yield nothing.
func (s *Snapshot) FindRules(ctx context.Context, medicationNames []string) ([]domain.InteractionWarning, error) {
	names := dedupeNormalized(medicationNames)

	var warnings []domain.InteractionWarning
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if rule, ok := s.rules[domain.PairKey(names[i], names[j])]; ok {
				warnings = append(warnings, rule)
			}
		}
	}

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Key() < warnings[j].Key() })
	return warnings, nil
}

// dedupeNormalized trims, case-folds and deduplicates medication names,
// preserving first-seen order of the normalized forms.
func dedupeNormalized(names []string) []string {
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
