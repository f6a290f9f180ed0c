package domain

import (
	"context"
)

// CatalogFilter narrows a catalog scan. Empty fields match everything.
type CatalogFilter struct {
	Category string
	Type     string
	Search   string
}

// CatalogReader provides read access to the medicine catalog. Only
// records with IsActive set are eligible for suggestion; implementations
// must exclude inactive records from FindActiveMedicines.
type CatalogReader interface {
	// FindActiveMedicines returns the active catalog records matching the
	// filter.
	FindActiveMedicines(ctx context.Context, filter CatalogFilter) ([]*MedicineRecord, error)

	// GetByName resolves a medicine by exact or case-insensitive name,
	// generic name or brand name match. Returns a NotFoundError when no
	// record matches.
	GetByName(ctx context.Context, name string) (*MedicineRecord, error)
}

// InteractionSource looks up pairwise interaction rules for a medication
// list. Pairs without a rule produce no warning; absence of a rule is not
// evidence of safety, it only means the table has no data for the pair.
type InteractionSource interface {
	// FindRules returns the interaction warnings for every unordered pair
	// of the given medication names that has a rule. Lookup is
	// order-independent and case-insensitive.
	FindRules(ctx context.Context, medicationNames []string) ([]InteractionWarning, error)
}

// PatientReader resolves a patient's existing medications and allergies.
// Implemented by an external collaborator; the engine never writes
// patient data.
type PatientReader interface {
	GetPatient(ctx context.Context, id string) (*PatientRecord, error)
}

// KnowledgeBase is the combined read surface the engine consults.
type KnowledgeBase interface {
	CatalogReader
	InteractionSource
}

// ConfigManager defines the configuration access interface
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetEngineConfig() *EngineConfig
	Reload() error
	Validate() error
}
