// Package config provides configuration loading and validation for matchlog.
package config

import "time"

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// LogDir is the directory holding match logs. Empty means the directory
	// remembered from the previous ingestion.
	LogDir string `yaml:"log_dir"`

	// Extension selects log files in LogDir (matched case-insensitively).
	Extension string `yaml:"extension"`

	// DataDir holds the store snapshot and the remembered log directory.
	DataDir string `yaml:"data_dir"`

	Ingest IngestConfig `yaml:"ingest"`
	Query  QueryConfig  `yaml:"query"`

	// Missions maps mission ids to display names. Unlisted ids are humanized.
	Missions map[string]string `yaml:"missions,omitempty"`

	// Difficulties maps difficulty levels to display names.
	Difficulties map[int]string `yaml:"difficulties,omitempty"`

	Logging LoggingConfig `yaml:"logging"`
}

// IngestConfig tunes batched ingestion.
type IngestConfig struct {
	// BatchSize is the number of files committed and snapshotted together.
	BatchSize int `yaml:"batch_size"`

	// ScoreChunkSize bounds the rows of one score insert statement.
	ScoreChunkSize int `yaml:"score_chunk_size"`

	// SnapshotRetries is how often a failed snapshot write is retried.
	SnapshotRetries uint64 `yaml:"snapshot_retries"`
}

// QueryConfig tunes dashboard queries.
type QueryConfig struct {
	// LongLossThreshold is the duration after which a lost match counts as a long loss.
	LongLossThreshold time.Duration `yaml:"long_loss_threshold"`
}

// LoggingConfig configures diagnostics output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// File, when set, also writes logs to a rotated file.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
