package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/matchlog/pkg/repository"
	"github.com/ccollicutt/matchlog/pkg/source"
	"github.com/ccollicutt/matchlog/pkg/store"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	blobs *store.MemoryBlobs
	store *store.Store
	repo  *repository.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs := store.NewMemoryBlobs()
	st, err := store.Open(context.Background(), blobs, store.WithLogger(quiet), store.WithRetry(0, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{blobs: blobs, store: st, repo: repository.New(st)}
}

func (f *fixture) coordinator(opts ...Option) *Coordinator {
	return New(f.store, f.repo, append([]Option{WithLogger(quiet)}, opts...)...)
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	db, err := f.store.DB()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func logFile(value int) string {
	return strings.Join([]string{
		"#mission;cm_habs;2;nil;won;1500",
		"#players;1",
		"0;" + alice + ";Alice",
		"#row;dmg;1;1;<damage_dealt>;DESC",
		fmt.Sprintf("%s;%d", alice, value),
	}, "\n")
}

func logFiles(n, start int) map[string]string {
	files := make(map[string]string, n)
	for i := range n {
		files[fmt.Sprintf("%d.lua", start+i)] = logFile(i)
	}
	return files
}

func TestRun_SameFileTwiceIngestedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := source.NewMemory(map[string]string{"1700000000.lua": logFile(250)})

	sum, err := f.coordinator().Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Ingested)
	assert.Equal(t, 0, sum.Errors)
	assert.Equal(t, 1, sum.Total)

	sum, err = f.coordinator().Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Ingested)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, src.Reads("1700000000.lua"), "recorded file is not read again")

	assert.Equal(t, 1, f.count(t, "games"))
	assert.Equal(t, 1, f.count(t, "scores"))
}

func TestRun_OnlyNewFilesProcessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := source.NewMemory(logFiles(97, 1000))

	_, err := f.coordinator().Run(ctx, src)
	require.NoError(t, err)

	for name, content := range logFiles(3, 2000) {
		src.Add(name, content)
	}
	var reports []Progress
	sum, err := f.coordinator(WithProgress(func(p Progress) { reports = append(reports, p) })).Run(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Ingested)
	assert.Equal(t, 100, sum.Total)
	assert.Equal(t, 97, sum.Skipped)
	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, 100, last.Total)
	assert.Equal(t, 100, f.count(t, "games"))
}

func TestRun_BadFileIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := source.NewMemory(map[string]string{
		"100.lua":   logFile(1),
		"notes.lua": logFile(2),
		"300.lua":   logFile(3),
	})

	sum, err := f.coordinator(WithBatchSize(10)).Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Ingested)
	assert.Equal(t, 1, sum.Errors)
	assert.True(t, sum.HasErrors())
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "notes.lua", sum.Failures[0].Name)
	assert.Equal(t, StageParse, sum.Failures[0].Stage)
	assert.Equal(t, 2, f.count(t, "games"))
}

func TestRun_BatchesCommitAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := source.NewMemory(logFiles(5, 100))

	var reports []Progress
	sum, err := f.coordinator(
		WithBatchSize(2),
		WithProgress(func(p Progress) { reports = append(reports, p) }),
	).Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Ingested)

	processed := make([]int, 0, len(reports))
	for _, p := range reports {
		processed = append(processed, p.Processed)
		assert.Equal(t, 5, p.Total)
	}
	assert.Equal(t, []int{2, 4, 5}, processed)
	assert.Equal(t, 3, f.blobs.Puts(), "one checkpoint per batch plus the final one")

	// the snapshot holds every match
	reopened, err := store.Open(ctx, f.blobs, store.WithLogger(quiet))
	require.NoError(t, err)
	defer reopened.Close()
	db, err := reopened.DB()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM games`).Scan(&n))
	assert.Equal(t, 5, n)
}

func TestRun_PersistenceFailureContinues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.blobs.FailPuts(errors.New("disk full"))

	sum, err := f.coordinator(WithBatchSize(2)).Run(ctx, source.NewMemory(logFiles(3, 100)))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Ingested)
	assert.Equal(t, 2, sum.PersistFailures)
	assert.Equal(t, 3, f.count(t, "games"))
}

func TestRun_NothingNew(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var reports []Progress
	sum, err := f.coordinator(WithProgress(func(p Progress) { reports = append(reports, p) })).
		Run(ctx, source.NewMemory(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Ingested)
	assert.Equal(t, 0, sum.Total)
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Processed)
	assert.Equal(t, 0, f.blobs.Puts())
}

func TestRun_CancelKeepsCommittedBatches(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sum, err := f.coordinator(
		WithBatchSize(2),
		WithProgress(func(Progress) { cancel() }),
	).Run(ctx, source.NewMemory(logFiles(5, 100)))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Ingested)
	assert.Equal(t, 2, f.count(t, "games"))
	assert.Equal(t, 1, f.blobs.Puts())

	// a rerun picks up where the canceled one stopped
	sum, err = f.coordinator().Run(context.Background(), source.NewMemory(logFiles(5, 100)))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Ingested)
	assert.Equal(t, 2, sum.Skipped)
}

func TestRun_CanceledBeforeListing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.coordinator().Run(ctx, source.NewDir(t.TempDir(), ".lua"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, sum, "callers report the summary of interrupted runs")
	assert.Zero(t, sum.Ingested)
	assert.Zero(t, sum.Total)
}

func TestRun_BackfillAndMainPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := source.NewMemory(map[string]string{
		"100.lua": strings.Join([]string{
			"#mission;cm_habs;2;nil;won;1500",
			"#players;2",
			"0;" + alice + ";Alice",
			"1;" + bob + ";Bob",
		}, "\n"),
		"200.lua": strings.Join([]string{
			"#mission;cm_habs;2;nil;lost;60",
			"#players;1",
			"0;" + alice + ";Alice",
			"#row;dmg;1;2;<damage_dealt>;DESC",
			alice + ";10",
			bob + ";20",
		}, "\n"),
	})

	sum, err := f.coordinator().Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.NamesBackfilled)
	assert.Equal(t, alice, sum.MainPlayer)

	games, err := f.repo.GetGames(ctx, repository.GameQuery{Properties: []string{"dmg"}})
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Bob", games[1].Roster[bob])
	assert.True(t, games[1].Quitters[bob])
	assert.Equal(t, 20.0, games[1].Scores[bob]["dmg"])
}
