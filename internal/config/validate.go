package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backup cipher names.
const (
	CipherXOR    = "xor"
	CipherSealed = "sealed"
)

// Validate checks the loaded configuration for values the tracker cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	switch c.Storage.BackupCipher {
	case CipherXOR, CipherSealed:
	default:
		errs = append(errs, fmt.Errorf("storage.backup_cipher: unknown cipher %q", c.Storage.BackupCipher))
	}
	if c.Tracking.BackfillChunkDays < 1 {
		errs = append(errs, errors.New("tracking.backfill_chunk_days must be positive"))
	}
	if c.Tracking.BackfillDays < 0 {
		errs = append(errs, errors.New("tracking.backfill_days must not be negative"))
	}
	if c.Scheduler.TickInterval < time.Minute {
		errs = append(errs, errors.New("scheduler.tick_interval must be at least 1m"))
	}
	if _, err := time.Parse("15:04", c.Scheduler.MaintenanceAt); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.maintenance_at: %w", err))
	}
	if c.Host.AnnotationField < 0 || c.Host.LinkField < 0 {
		errs = append(errs, errors.New("host field indexes must not be negative"))
	}

	return errors.Join(errs...)
}
