package config

import "time"

// Config is the root configuration of the tracker.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Host      HostConfig      `yaml:"host"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig holds the embedded store settings.
type StorageConfig struct {
	Path             string        `yaml:"path"              env:"STUDYTRACKER_DB_PATH"           env-default:"data/learning_stats.db"`
	BackupDir        string        `yaml:"backup_dir"        env:"STUDYTRACKER_BACKUP_DIR"        env-default:"data/backups"`
	BackupCipher     string        `yaml:"backup_cipher"     env:"STUDYTRACKER_BACKUP_CIPHER"     env-default:"xor"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval" env:"STUDYTRACKER_SNAPSHOT_INTERVAL" env-default:"1m"`
}

// HostConfig describes the flashcard collection the tracker reads from.
type HostConfig struct {
	CollectionPath  string `yaml:"collection_path"  env:"STUDYTRACKER_COLLECTION"       env-default:"collection.anki2"`
	AnnotationField int    `yaml:"annotation_field" env:"STUDYTRACKER_ANNOTATION_FIELD" env-default:"2"`
	LinkField       int    `yaml:"link_field"       env:"STUDYTRACKER_LINK_FIELD"       env-default:"3"`
}

// TrackingConfig holds aggregation settings.
type TrackingConfig struct {
	BackfillChunkDays int   `yaml:"backfill_chunk_days" env:"STUDYTRACKER_BACKFILL_CHUNK_DAYS" env-default:"30"`
	BackfillDays      int   `yaml:"backfill_days"       env:"STUDYTRACKER_BACKFILL_DAYS"       env-default:"0"`
	SelectedDeck      int64 `yaml:"selected_deck"       env:"STUDYTRACKER_SELECTED_DECK"       env-default:"0"`
}

// SchedulerConfig holds the periodic timer settings.
type SchedulerConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"  env:"STUDYTRACKER_TICK_INTERVAL"  env-default:"5m"`
	MaintenanceAt string        `yaml:"maintenance_at" env:"STUDYTRACKER_MAINTENANCE_AT" env-default:"03:00"`
}

// NotifyConfig enables Telegram notifications when both fields are set.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"   env:"STUDYTRACKER_TELEGRAM_TOKEN"`
	TelegramChatID int64  `yaml:"telegram_chat_id" env:"STUDYTRACKER_TELEGRAM_CHAT_ID"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Mode  string `yaml:"mode"  env:"LOG_MODE"  env-default:"development"`
}

// TelegramEnabled reports whether Telegram credentials are configured.
func (c NotifyConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
