package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxScoreChunkSize keeps one score statement below SQLite's bound-parameter limit.
const maxScoreChunkSize = 8000

// Load reads and validates a configuration file. An empty path yields the
// defaults with environment overrides applied.
func Load(_ context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and normalizes the extension.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return errors.New("data_dir: a data directory is required")
	}

	if err := validateExtension(&cfg.Extension); err != nil {
		return fmt.Errorf("extension: %w", err)
	}

	if cfg.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size: must be >= 1, got %d", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.ScoreChunkSize < 1 || cfg.Ingest.ScoreChunkSize > maxScoreChunkSize {
		return fmt.Errorf("ingest.score_chunk_size: must be between 1 and %d, got %d",
			maxScoreChunkSize, cfg.Ingest.ScoreChunkSize)
	}

	if cfg.Query.LongLossThreshold <= 0 {
		return fmt.Errorf("query.long_loss_threshold: must be positive, got %v", cfg.Query.LongLossThreshold)
	}

	for id, name := range cfg.Missions {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("missions[%s]: name is required", id)
		}
	}
	for level, name := range cfg.Difficulties {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("difficulties[%d]: name is required", level)
		}
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

func validateExtension(ext *string) error {
	if *ext == "" {
		*ext = DefaultExtension
	}
	if strings.ContainsAny(*ext, `/\*?[`) {
		return fmt.Errorf("invalid extension %q", *ext)
	}
	if !strings.HasPrefix(*ext, ".") {
		*ext = "." + *ext
	}
	return nil
}

func validateLogging(lc *LoggingConfig) error {
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "warning", "error":
		lc.Level = strings.ToLower(lc.Level)
	default:
		return fmt.Errorf("invalid level %q (must be debug, info, warn, or error)", lc.Level)
	}

	if lc.File == "" {
		return nil
	}
	if lc.MaxSizeMB <= 0 {
		lc.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if lc.MaxBackups < 0 {
		return fmt.Errorf("max_backups: must be >= 0, got %d", lc.MaxBackups)
	}
	if lc.MaxAgeDays < 0 {
		return fmt.Errorf("max_age_days: must be >= 0, got %d", lc.MaxAgeDays)
	}
	return nil
}

// expandPath expands environment variables in the format ${VAR} or $VAR and a
// leading "~" for the home directory.
func expandPath(s string) string {
	if s == "" {
		return s
	}

	s = os.ExpandEnv(s)

	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}

	return s
}
