package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/api"
	"github.com/clinic-suggestion-engine/internal/config"
	"github.com/clinic-suggestion-engine/internal/database"
	"github.com/clinic-suggestion-engine/internal/domain"
	"github.com/clinic-suggestion-engine/internal/knowledge"
	"github.com/clinic-suggestion-engine/internal/repository"
	"github.com/clinic-suggestion-engine/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := buildLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Storage.Backend,
	}).Info("Starting clinical suggestion engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kb, patients, health, cleanup, err := buildKnowledgeBase(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize knowledge base")
	}
	defer cleanup()

	resilient := knowledge.NewResilientKnowledgeBase(kb, kb, patients, logger)

	matcher, err := knowledge.NewIndicationMatcher(
		knowledge.NewStrategy(cfg.Engine.MatchStrategy), cfg.Engine.MatcherCacheSize)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize indication matcher")
	}

	suggester := service.NewMedicineSuggester(resilient, matcher, cfg.Engine, logger)
	dosage := service.NewDosageSuggester(resilient, cfg.Engine, logger)
	checker := service.NewInteractionChecker(resilient, logger)
	optimizer := service.NewPrescriptionOptimizer(resilient, resilient, dosage, matcher, cfg.Engine, logger)

	server := api.NewServer(cfg, suggester, dosage, checker, optimizer, health, logger)

	if snapshot, ok := kb.(*knowledge.Snapshot); ok {
		server.SetKnowledgeInfo(func() map[string]interface{} {
			return map[string]interface{}{
				"medicines": snapshot.Size(),
				"rules":     snapshot.RuleCount(),
				"loaded_at": snapshot.LoadedAt(),
			}
		})
	}

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// buildKnowledgeBase wires the configured storage backend and returns the
// combined catalog/interaction reader, the patient reader, a health probe
// and a cleanup function for shutdown.
func buildKnowledgeBase(
	ctx context.Context,
	cfg *domain.Config,
	logger *logrus.Logger,
) (domain.KnowledgeBase, domain.PatientReader, api.HealthChecker, func(), error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return buildSQLiteBackend(ctx, cfg, logger)
	case "postgres":
		return buildPostgresBackend(ctx, cfg, logger)
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// buildSQLiteBackend opens the single-file store used in standalone
// deployments. When the snapshot cache is enabled the engine serves reads
// from an immutable snapshot, refreshed through Redis across restarts.
func buildSQLiteBackend(
	ctx context.Context,
	cfg *domain.Config,
	logger *logrus.Logger,
) (domain.KnowledgeBase, domain.PatientReader, api.HealthChecker, func(), error) {
	store, err := knowledge.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	if cfg.Storage.SeedOnStartup {
		if err := store.Seed(ctx); err != nil {
			store.Close()
			return nil, nil, nil, nil, fmt.Errorf("seeding knowledge base: %w", err)
		}
	}

	var kb domain.KnowledgeBase = store
	cleanup := func() { store.Close() }
	health := func(ctx context.Context) error { return store.Health(ctx) }

	if cfg.Cache.Enabled {
		cache, err := knowledge.NewSnapshotCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Snapshot cache unavailable, serving directly from store")
		} else {
			snapshot, err := loadSnapshot(ctx, cache, store, cfg.Storage.SQLitePath, cfg, logger)
			if err != nil {
				cache.Close()
				store.Close()
				return nil, nil, nil, nil, err
			}
			kb = snapshot
			cleanup = func() {
				cache.Close()
				store.Close()
			}
		}
	}

	return kb, store, health, cleanup, nil
}

// loadSnapshot serves the knowledge base from the snapshot cache when a
// fresh entry exists, falling back to a full store load.
func loadSnapshot(
	ctx context.Context,
	cache *knowledge.SnapshotCache,
	store *knowledge.SQLiteStore,
	version string,
	cfg *domain.Config,
	logger *logrus.Logger,
) (*knowledge.Snapshot, error) {
	snapshot, hit, err := cache.Get(ctx, version)
	if err != nil {
		logger.WithError(err).Warn("Snapshot cache lookup failed")
	}
	if hit {
		logger.WithField("medicines", snapshot.Size()).Info("Knowledge base served from snapshot cache")
		return snapshot, nil
	}

	snapshot, err = store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge snapshot: %w", err)
	}
	if err := cache.Set(ctx, version, snapshot, cfg.Cache.DefaultTTL); err != nil {
		logger.WithError(err).Warn("Failed to cache knowledge snapshot")
	}
	logger.WithFields(logrus.Fields{
		"medicines": snapshot.Size(),
		"rules":     snapshot.RuleCount(),
	}).Info("Knowledge base loaded")
	return snapshot, nil
}

// buildPostgresBackend connects the full deployment: a pgx pool for the
// catalog and interaction tables, migrations on startup, and a separate
// database/sql connection for the patient store.
func buildPostgresBackend(
	ctx context.Context,
	cfg *domain.Config,
	logger *logrus.Logger,
) (domain.KnowledgeBase, domain.PatientReader, api.HealthChecker, func(), error) {
	databaseURL := database.URL(cfg.Database)

	runner, err := database.NewMigrationRunner(databaseURL, cfg.Storage.MigrationsPath, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("creating migration runner: %w", err)
	}
	if err := runner.Up(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	runner.Close()

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	patientDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("opening patient store connection: %w", err)
	}
	if err := patientDB.PingContext(ctx); err != nil {
		db.Close()
		patientDB.Close()
		return nil, nil, nil, nil, fmt.Errorf("pinging patient store: %w", err)
	}

	catalog := repository.NewCatalogRepository(db.Pool, logger)
	interactions := repository.NewInteractionRepository(db.Pool, logger)
	patients := repository.NewPatientRepository(patientDB, logger)

	kb := struct {
		domain.CatalogReader
		domain.InteractionSource
	}{catalog, interactions}

	health := func(ctx context.Context) error {
		if err := db.Health(ctx); err != nil {
			return err
		}
		return patientDB.PingContext(ctx)
	}
	cleanup := func() {
		patientDB.Close()
		db.Close()
	}

	return kb, patients, health, cleanup, nil
}

// buildLogger configures logrus from the logging section.
func buildLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}
