package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Storage:   StorageConfig{Path: "x.db", BackupDir: "b", BackupCipher: CipherXOR, SnapshotInterval: time.Minute},
		Tracking:  TrackingConfig{BackfillChunkDays: 30},
		Scheduler: SchedulerConfig{TickInterval: 5 * time.Minute, MaintenanceAt: "03:00"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.BackupCipher = "rot13"
	cfg.Tracking.BackfillChunkDays = 0
	cfg.Scheduler.MaintenanceAt = "25:99"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup_cipher")
	assert.Contains(t, err.Error(), "backfill_chunk_days")
	assert.Contains(t, err.Error(), "maintenance_at")
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "storage:\n  path: from-yaml.db\ntracking:\n  backfill_chunk_days: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Chdir(dir)
	t.Setenv("STUDYTRACKER_CONFIG", path)
	t.Setenv("STUDYTRACKER_BACKFILL_CHUNK_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-yaml.db", cfg.Storage.Path)
	assert.Equal(t, 14, cfg.Tracking.BackfillChunkDays)
	assert.Equal(t, CipherXOR, cfg.Storage.BackupCipher)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.TickInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STUDYTRACKER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}
