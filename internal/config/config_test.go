package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager()
	require.NoError(t, err)
	return manager
}

func TestNewManager_Defaults(t *testing.T) {
	clearEnvVars(t)

	manager := newTestManager(t)
	cfg := manager.GetConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.SeedOnStartup)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 0.3, cfg.Engine.InteractionPenalty)
	assert.Equal(t, 0.1, cfg.Engine.MinConfidence)
	assert.Equal(t, 10, cfg.Engine.MaxSuggestions)
	assert.Equal(t, "token_overlap", cfg.Engine.MatchStrategy)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("CLINIC_SERVER_PORT", "9090")
	os.Setenv("CLINIC_STORAGE_BACKEND", "postgres")
	os.Setenv("CLINIC_DATABASE_HOST", "db.internal")
	os.Setenv("CLINIC_ENGINE_MAX_SUGGESTIONS", "5")

	manager := newTestManager(t)
	cfg := manager.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Engine.MaxSuggestions)
}

func TestReload_PicksUpEnvironmentChanges(t *testing.T) {
	clearEnvVars(t)

	manager := newTestManager(t)
	assert.Equal(t, 8080, manager.GetConfig().Server.Port)

	os.Setenv("CLINIC_SERVER_PORT", "9191")
	require.NoError(t, manager.Reload())
	assert.Equal(t, 9191, manager.GetConfig().Server.Port)
}

func TestValidate_Defaults(t *testing.T) {
	clearEnvVars(t)

	manager := newTestManager(t)
	assert.NoError(t, manager.Validate())
}

func TestValidate_Failures(t *testing.T) {
	clearEnvVars(t)

	tests := []struct {
		name   string
		mutate func(m *Manager)
	}{
		{"invalid port", func(m *Manager) { m.config.Server.Port = 0 }},
		{"unknown backend", func(m *Manager) { m.config.Storage.Backend = "dynamo" }},
		{"missing sqlite path", func(m *Manager) { m.config.Storage.SQLitePath = "" }},
		{"cache without redis url", func(m *Manager) {
			m.config.Cache.Enabled = true
			m.config.Cache.RedisURL = ""
		}},
		{"penalty out of range", func(m *Manager) { m.config.Engine.InteractionPenalty = 1.5 }},
		{"negative min confidence", func(m *Manager) { m.config.Engine.MinConfidence = -0.2 }},
		{"zero max suggestions", func(m *Manager) { m.config.Engine.MaxSuggestions = 0 }},
		{"bad log level", func(m *Manager) { m.config.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager(t)
			tt.mutate(manager)
			assert.Error(t, manager.Validate())
		})
	}
}

func TestValidate_PostgresBackend(t *testing.T) {
	clearEnvVars(t)

	manager := newTestManager(t)
	manager.config.Storage.Backend = "postgres"
	assert.NoError(t, manager.Validate())

	manager.config.Database.Host = ""
	assert.Error(t, manager.Validate())
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, "CLINIC_") {
			os.Unsetenv(key)
		}
	}
	t.Cleanup(func() {
		for _, key := range []string{
			"CLINIC_SERVER_PORT", "CLINIC_STORAGE_BACKEND",
			"CLINIC_DATABASE_HOST", "CLINIC_ENGINE_MAX_SUGGESTIONS",
		} {
			os.Unsetenv(key)
		}
	})
}
