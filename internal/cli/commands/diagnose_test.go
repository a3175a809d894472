package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/matchlog/pkg/config"
	"github.com/ccollicutt/matchlog/pkg/store"
)

func TestNewDiagnoseCommand(t *testing.T) {
	cmd := NewDiagnoseCommand(&GlobalOptions{})

	if cmd.Use != "diagnose" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}
}

func TestCheckConfigExists_NotFound(t *testing.T) {
	result := checkConfigExists("/nonexistent/config.yaml")

	if result.Status != statusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "not found") {
		t.Errorf("Expected 'not found' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "empty.yaml")

	// Create empty file
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	result := checkConfigExists(configPath)

	if result.Status != statusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "empty") {
		t.Errorf("Expected 'empty' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Directory(t *testing.T) {
	result := checkConfigExists(t.TempDir())

	if result.Status != statusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "directory") {
		t.Errorf("Expected 'directory' in message, got: %s", result.Message)
	}
}

func TestCheckConfigExists_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := os.WriteFile(configPath, []byte("extension: .lua"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	result := checkConfigExists(configPath)

	if result.Status != statusOK {
		t.Errorf("Expected ok status, got %s", result.Status)
	}
}

func TestCheckConfigParseable_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("ingest:\n  batch_size: -1\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	cfg, result := checkConfigParseable(context.Background(), configPath)

	if cfg != nil {
		t.Error("Expected nil config")
	}
	if result.Status != statusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
}

func TestCheckSnapshot(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemoryBlobs()

	if result := checkSnapshot(ctx, blobs); result.Status != statusOK {
		t.Errorf("missing snapshot: status = %s, want ok", result.Status)
	}

	if err := blobs.Put(ctx, store.KeySnapshot, []byte("garbage")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	result := checkSnapshot(ctx, blobs)
	if result.Status != statusError {
		t.Errorf("corrupt snapshot: status = %s, want error", result.Status)
	}
	if len(result.Suggests) == 0 {
		t.Error("corrupt snapshot should suggest a fix")
	}
}

func TestCheckFilenames(t *testing.T) {
	result := checkFilenames([]string{"1700000000.lua", "1700003600.lua"}, ".lua")
	if result.Status != statusOK {
		t.Errorf("Expected ok status, got %s", result.Status)
	}

	names := []string{"1700000000.lua", "a.lua", "b.lua", "c.lua", "d.lua", "e.lua", "f.lua", "g.lua"}
	result = checkFilenames(names, ".lua")
	if result.Status != statusWarning {
		t.Errorf("Expected warning status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "7 file(s)") {
		t.Errorf("Message = %q", result.Message)
	}
	if len(result.Details) != maxListed+1 || !strings.Contains(result.Details[maxListed], "2 more") {
		t.Errorf("Details = %v", result.Details)
	}
}

func TestCheckLogDir_NotConfigured(t *testing.T) {
	results := checkLogDir(context.Background(), config.DefaultConfig(), "")

	if len(results) != 1 || results[0].Status != statusWarning {
		t.Errorf("results = %+v, want one warning", results)
	}
}

func TestCheckLogDir_ParseWarnings(t *testing.T) {
	dir := writeLogs(t, 1)
	broken := strings.Replace(matchLog(5), aliceID+";5", aliceID+";lots", 1)
	if err := os.WriteFile(filepath.Join(dir, "1800000000.lua"), []byte(broken), 0644); err != nil {
		t.Fatalf("Failed to create log file: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.LogDir = dir
	results := checkLogDir(context.Background(), cfg, "")

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !strings.Contains(results[0].Message, "2 match log(s)") {
		t.Errorf("Log Directory message = %q", results[0].Message)
	}
	parse := results[2]
	if !strings.Contains(parse.Check, "1800000000.lua") {
		t.Errorf("parse test should use the newest log, got %q", parse.Check)
	}
	if parse.Status != statusWarning {
		t.Errorf("parse status = %s, want warning", parse.Status)
	}
}

func TestRunDiagnose(t *testing.T) {
	opts := newTestOptions(t)
	t.Setenv(config.EnvLogDir, writeLogs(t, 2))

	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, opts); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"=== matchlog Diagnostics ===",
		"[PASS] Config Syntax",
		"[PASS] Data Directory",
		"[PASS] Snapshot",
		"[PASS] Log Directory",
		"Summary: 6 passed, 0 warnings, 0 errors",
		"Setup looks good!",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunDiagnose_MissingConfig(t *testing.T) {
	opts := newTestOptions(t)
	opts.ConfigPath = "/nonexistent/config.yaml"

	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, opts); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}
	if !strings.Contains(buf.String(), "[FAIL] Config File") {
		t.Errorf("output missing config failure:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Data Directory") {
		t.Error("checks should stop after a missing config file")
	}
}

func TestPrintDiagnostics_Verbose(t *testing.T) {
	results := []DiagnosticResult{
		{Check: "One", Status: statusOK, Message: "fine", Details: []string{"detail"}},
		{Check: "Two", Status: statusWarning, Message: "hmm", Suggests: []string{"try this"}},
	}

	var buf bytes.Buffer
	printDiagnostics(&buf, results, false)
	if strings.Contains(buf.String(), "detail") {
		t.Error("details of passing checks shown without verbose")
	}
	if !strings.Contains(buf.String(), "Hint: try this") {
		t.Error("missing hint")
	}

	buf.Reset()
	printDiagnostics(&buf, results, true)
	if !strings.Contains(buf.String(), "- detail") {
		t.Error("verbose output missing details")
	}
	if !strings.Contains(buf.String(), "usable but has warnings") {
		t.Error("missing warning summary")
	}
}
