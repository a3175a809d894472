package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"ingest", "games", "properties", "filters", "players", "player",
		"settings", "reset", "snapshot", "diagnose", "validate", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Missing subcommand: %s", name)
		}
	}

	for _, flag := range []string{"config", "env-file", "output", "verbose", "quiet"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Missing persistent flag: %s", flag)
		}
	}
}

func TestRootCommand_InvalidOutput(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--output", "xml", "version"})
	cmd.SetOut(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v, want unknown output format", err)
	}
}

func TestRootCommand_VerboseAndQuiet(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"-v", "-q", "version"})
	cmd.SetOut(io.Discard)

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error combining --verbose and --quiet")
	}
}

func TestRootCommand_Version(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"version"})
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "matchlog ") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "MATCHLOG_TEST_ENV_VALUE"
	t.Setenv(key, "")
	os.Unsetenv(key)

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0644); err != nil {
		t.Fatalf("Failed to create env file: %v", err)
	}

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}
}

func TestLoadEnvFile_KeepsExisting(t *testing.T) {
	const key = "MATCHLOG_TEST_ENV_EXISTING"
	t.Setenv(key, "from-env")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0644); err != nil {
		t.Fatalf("Failed to create env file: %v", err)
	}

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Errorf("%s = %q, want from-env", key, got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	// the default file is optional
	t.Chdir(t.TempDir())
	if err := loadEnvFile(defaultEnvFile); err != nil {
		t.Errorf("missing default env file: %v", err)
	}

	if err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Error("Expected error for a missing explicit env file")
	}
}
