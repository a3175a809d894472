package test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/ccollicutt/matchlog/internal/cli"
	"github.com/ccollicutt/matchlog/internal/cli/commands"
	"github.com/ccollicutt/matchlog/pkg/config"
	"github.com/ccollicutt/matchlog/pkg/ingest"
	"github.com/ccollicutt/matchlog/pkg/logging"
	"github.com/ccollicutt/matchlog/pkg/output"
	"github.com/ccollicutt/matchlog/pkg/parser"
	"github.com/ccollicutt/matchlog/pkg/repository"
	"github.com/ccollicutt/matchlog/pkg/source"
	"github.com/ccollicutt/matchlog/pkg/store"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
	gruntID = "bot_grunt"
)

var (
	projectRoot string
	rootOnce    sync.Once
)

// chdir changes to the project root directory for tests.
// Config files use paths relative to project root.
func chdir(t *testing.T) {
	t.Helper()
	rootOnce.Do(func() {
		// Get the directory containing this test file, then go up one level
		_, filename, _, _ := runtime.Caller(0)
		projectRoot = filepath.Dir(filepath.Dir(filename))
	})
	t.Chdir(projectRoot)
}

// requireFile fails the test if the required test file doesn't exist.
// We never skip tests - missing test data is a test failure.
func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Required test file not found: %s", path)
	}
}

var (
	logDir     = filepath.Join("testdata", "logs")
	configFile = filepath.Join("testdata", "configs", "matchlog.yaml")
)

// env isolates the data directory and returns the loaded test configuration.
func env(t *testing.T) *config.Config {
	t.Helper()
	chdir(t)
	requireFile(t, configFile)
	requireFile(t, filepath.Join(logDir, "1700000000.lua"))

	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvLogDir, "")
	t.Setenv(config.EnvLogLevel, "")

	cfg, err := config.Load(context.Background(), configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

type pipeline struct {
	cfg   *config.Config
	store *store.Store
	repo  *repository.Repository
	coord *ingest.Coordinator
}

// open wires the components the way the CLI does, on the configured data directory.
func open(t *testing.T, cfg *config.Config) *pipeline {
	t.Helper()
	ctx := context.Background()

	logger, closer, err := logging.NewLogger(cfg.Logging, io.Discard)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { closer.Close() })

	blobs, err := store.NewFileBlobs(cfg.DataDir)
	if err != nil {
		t.Fatalf("Failed to open data dir: %v", err)
	}
	st, err := store.Open(ctx, blobs, store.WithLogger(logger), store.WithRetry(0, 0))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	repo := repository.New(st,
		repository.WithScoreChunkSize(cfg.Ingest.ScoreChunkSize),
		repository.WithLongLossThreshold(cfg.Query.LongLossThreshold),
		repository.WithDifficultyNames(cfg.Difficulties))
	coord := ingest.New(st, repo,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithLogger(logger),
		ingest.WithParser(parser.New(parser.WithMissionNames(cfg.Missions))))

	return &pipeline{cfg: cfg, store: st, repo: repo, coord: coord}
}

func (p *pipeline) games(t *testing.T, q repository.GameQuery) []repository.Game {
	t.Helper()
	if q.Properties == nil {
		q.Properties = []string{"dmg", "gold"}
	}
	games, err := p.repo.GetGames(context.Background(), q)
	if err != nil {
		t.Fatalf("GetGames failed: %v", err)
	}
	return games
}

func filenames(games []repository.Game) []string {
	names := make([]string, len(games))
	for i, g := range games {
		names[i] = g.Filename
	}
	return names
}

// TestE2E_IngestDirectory ingests the sample logs and checks every query view.
func TestE2E_IngestDirectory(t *testing.T) {
	cfg := env(t)
	p := open(t, cfg)
	ctx := context.Background()

	var progress []ingest.Progress
	coord := ingest.New(p.store, p.repo,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithLogger(slog.New(slog.DiscardHandler)),
		ingest.WithParser(parser.New(parser.WithMissionNames(cfg.Missions))),
		ingest.WithProgress(func(pr ingest.Progress) { progress = append(progress, pr) }))

	sum, err := coord.Run(ctx, source.NewDir(logDir, cfg.Extension))
	if err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}

	if sum.Ingested != 3 || sum.Errors != 1 || sum.Total != 4 {
		t.Errorf("summary = %d ingested, %d errors, %d total; want 3, 1, 4", sum.Ingested, sum.Errors, sum.Total)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Name != "notes.lua" || sum.Failures[0].Stage != ingest.StageParse {
		t.Errorf("failures = %+v", sum.Failures)
	}
	if sum.MainPlayer != aliceID {
		t.Errorf("main player = %q, want Alice", sum.MainPlayer)
	}
	if sum.PersistFailures != 0 {
		t.Errorf("persist failures = %d", sum.PersistFailures)
	}

	// one report after the first batch of two, one when the run finishes
	if len(progress) != 2 || progress[0].Processed != 2 || progress[1].Processed != 4 {
		t.Errorf("progress = %+v", progress)
	}

	t.Run("games", func(t *testing.T) {
		all := p.games(t, repository.GameQuery{})
		if got := strings.Join(filenames(all), ","); got != "1700000000.lua,1700003600.lua,1700007200.lua" {
			t.Fatalf("games = %s", got)
		}
		first := all[0]
		if first.MissionName != "Habitation" || first.Result != "won" || first.DurationSeconds != 1500 {
			t.Errorf("first game = %+v", first)
		}
		if first.Roster[gruntID] != "Grunt" {
			t.Errorf("bot roster name = %q, want Grunt", first.Roster[gruntID])
		}
		if first.Scores[aliceID]["gold"] != 900 || first.Scores[gruntID]["dmg"] != 40 {
			t.Errorf("scores = %v", first.Scores)
		}
		if !all[1].Quitters[bobID] {
			t.Errorf("Bob left the second game: quitters = %v", all[1].Quitters)
		}
	})

	t.Run("filters narrow games", func(t *testing.T) {
		tests := []struct {
			name string
			q    repository.GameQuery
			want string
		}{
			{"won", repository.GameQuery{Result: repository.ResultWon}, "1700000000.lua"},
			{"lost", repository.GameQuery{Result: repository.ResultLost}, "1700003600.lua,1700007200.lua"},
			{"won or long loss", repository.GameQuery{Result: repository.ResultWonLongLost}, "1700000000.lua,1700003600.lua"},
			{"difficulty", repository.GameQuery{Difficulties: []int{2}}, "1700000000.lua,1700007200.lua"},
			{"mission", repository.GameQuery{Missions: []string{"cm_lab"}}, "1700007200.lua"},
			{"modifier", repository.GameQuery{Modifiers: []string{"hardcore"}}, "1700003600.lua"},
			{"last", repository.GameQuery{Last: 2}, "1700003600.lua,1700007200.lua"},
			{"no properties", repository.GameQuery{Properties: []string{}}, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := strings.Join(filenames(p.games(t, tt.q)), ","); got != tt.want {
					t.Errorf("games = %q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("properties", func(t *testing.T) {
		categories, err := p.repo.GetProperties(ctx)
		if err != nil {
			t.Fatalf("GetProperties failed: %v", err)
		}
		if len(categories) != 2 || categories[0].ID != "combat" || categories[1].ID != "economy" {
			t.Fatalf("categories = %+v", categories)
		}
		combat := categories[0].Properties
		if len(combat) != 3 || combat[0].ID != "dmg" || combat[0].Depth != 0 {
			t.Fatalf("combat properties = %+v", combat)
		}
		for _, child := range combat[1:] {
			if child.Depth != 1 {
				t.Errorf("%s depth = %d, want 1", child.ID, child.Depth)
			}
		}
	})

	t.Run("filter values", func(t *testing.T) {
		filters, err := p.repo.GetFilters(ctx)
		if err != nil {
			t.Fatalf("GetFilters failed: %v", err)
		}
		if len(filters.Missions) != 2 || filters.Missions[0].Name != "Habitation" || filters.Missions[1].Name != "Laboratory" {
			t.Errorf("missions = %+v", filters.Missions)
		}
		if len(filters.Difficulties) != 2 || filters.Difficulties[0].Name != "Normal" || filters.Difficulties[1].Name != "Hard" {
			t.Errorf("difficulties = %+v", filters.Difficulties)
		}
		if len(filters.Modifiers) != 1 || filters.Modifiers[0] != "hardcore" {
			t.Errorf("modifiers = %v", filters.Modifiers)
		}
		if filters.Span == nil || filters.Span.From.Unix() != 1700000000 || filters.Span.To.Unix() != 1700007200 {
			t.Errorf("span = %+v", filters.Span)
		}
	})

	t.Run("players", func(t *testing.T) {
		players, err := p.repo.GetPlayers(ctx)
		if err != nil {
			t.Fatalf("GetPlayers failed: %v", err)
		}
		if len(players) != 3 {
			t.Fatalf("players = %+v", players)
		}
		me := players[0]
		if me.ID != aliceID || !me.IsMain || me.CustomName != repository.MainPlayerLabel || me.Games != 3 {
			t.Errorf("main player = %+v", me)
		}
		if players[1].ID != bobID || players[1].Name != "Bob" || players[1].Games != 2 {
			t.Errorf("second player = %+v", players[1])
		}
		if players[2].ID != gruntID || !players[2].IsBot {
			t.Errorf("third player = %+v", players[2])
		}
	})
}

// TestE2E_Restart reopens the store from its snapshot and ingests again.
func TestE2E_Restart(t *testing.T) {
	cfg := env(t)
	ctx := context.Background()

	first := open(t, cfg)
	if _, err := first.coord.Run(ctx, source.NewDir(logDir, cfg.Extension)); err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}
	if err := first.repo.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := first.store.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	first.store.Close()

	second := open(t, cfg)
	if got := len(second.games(t, repository.GameQuery{})); got != 3 {
		t.Errorf("games after restart = %d, want 3", got)
	}
	if value, ok, err := second.repo.GetSetting(ctx, "theme"); err != nil || !ok || value != "dark" {
		t.Errorf("setting after restart = %q, %v, %v", value, ok, err)
	}

	sum, err := second.coord.Run(ctx, source.NewDir(logDir, cfg.Extension))
	if err != nil {
		t.Fatalf("Second ingestion failed: %v", err)
	}
	if sum.Ingested != 0 || sum.Skipped != 3 || sum.Errors != 1 {
		t.Errorf("second run = %d ingested, %d skipped, %d errors; want 0, 3, 1", sum.Ingested, sum.Skipped, sum.Errors)
	}
	if sum.MainPlayer != "" {
		t.Errorf("main player designated twice: %q", sum.MainPlayer)
	}
}

// runCLI executes the root command in-process and returns its standard output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append([]string{"--config", configFile, "--env-file", ""}, args...))
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// TestE2E_CLI drives the command line from ingestion to queries.
func TestE2E_CLI(t *testing.T) {
	env(t)
	commands.ExitCode = commands.ExitOK
	t.Cleanup(func() { commands.ExitCode = commands.ExitOK })

	out, err := runCLI(t, "ingest", logDir)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if !strings.Contains(out, "Summary: 3 ingested, 1 errors, 4 total") {
		t.Errorf("ingest output:\n%s", out)
	}
	if commands.ExitCode != commands.ExitIssues {
		t.Errorf("ExitCode = %d, want %d", commands.ExitCode, commands.ExitIssues)
	}

	out, err = runCLI(t, "--output", "json", "games", "--result", "won_long_lost", "--property", "dmg")
	if err != nil {
		t.Fatalf("games failed: %v", err)
	}
	var games []repository.Game
	if err := json.Unmarshal([]byte(out), &games); err != nil {
		t.Fatalf("Output is not valid JSON: %v\n%s", err, out)
	}
	if got := strings.Join(filenames(games), ","); got != "1700000000.lua,1700003600.lua" {
		t.Errorf("games = %s", got)
	}
	if _, ok := games[0].Scores[aliceID]["gold"]; ok {
		t.Error("unrequested property returned")
	}

	out, err = runCLI(t, "players")
	if err != nil {
		t.Fatalf("players failed: %v", err)
	}
	for _, want := range []string{aliceID, "Me", "main", gruntID, "bot"} {
		if !strings.Contains(out, want) {
			t.Errorf("players output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "diagnose")
	if err != nil {
		t.Fatalf("diagnose failed: %v", err)
	}
	for _, want := range []string{"[PASS] Snapshot", "[WARN] File Names", "notes.lua"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnose output missing %q:\n%s", want, out)
		}
	}

	exportPath := filepath.Join(t.TempDir(), "matchlog.db")
	if _, err := runCLI(t, "snapshot", "export", exportPath); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := runCLI(t, "reset", "--yes"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := runCLI(t, "snapshot", "import", exportPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err = runCLI(t, "--output", "json", "--quiet", "ingest")
	if err != nil {
		t.Fatalf("remembered ingest failed: %v", err)
	}
	var report output.IngestReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Output is not valid JSON: %v\n%s", err, out)
	}
	if report.Skipped != 3 || report.Ingested != 0 {
		t.Errorf("report after import = %+v, want 3 skipped", report)
	}
	if report.Failures != nil {
		t.Error("quiet JSON should omit failures")
	}
}
