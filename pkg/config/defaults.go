package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for configuration.
const (
	DefaultExtension         = ".lua"
	DefaultBatchSize         = 20
	DefaultScoreChunkSize    = 200
	DefaultSnapshotRetries   = 3
	DefaultLongLossThreshold = 15 * time.Minute
	DefaultLogLevel          = "info"
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAgeDays     = 28
)

// Environment variable names.
const (
	EnvLogDir   = "MATCHLOG_LOG_DIR"
	EnvDataDir  = "MATCHLOG_DATA_DIR"
	EnvLogLevel = "MATCHLOG_LOG_LEVEL"
)

// DefaultDifficulties returns the built-in difficulty names.
func DefaultDifficulties() map[int]string {
	return map[int]string{
		1: "Easy",
		2: "Normal",
		3: "Hard",
		4: "Very Hard",
		5: "Nightmare",
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extension: DefaultExtension,
		DataDir:   defaultDataDir(),
		Ingest: IngestConfig{
			BatchSize:       DefaultBatchSize,
			ScoreChunkSize:  DefaultScoreChunkSize,
			SnapshotRetries: DefaultSnapshotRetries,
		},
		Query: QueryConfig{
			LongLossThreshold: DefaultLongLossThreshold,
		},
		Missions:     map[string]string{},
		Difficulties: DefaultDifficulties(),
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "matchlog")
	}
	return ".matchlog"
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if dir := os.Getenv(EnvLogDir); dir != "" {
		c.LogDir = dir
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
}
