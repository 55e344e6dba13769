package syncer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploysync/deploysync/internal/config"
	"github.com/deploysync/deploysync/internal/delta"
	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/transfer"
)

func testSetup(t *testing.T) (*config.Config, *config.Project, string) {
	t.Helper()
	local := t.TempDir()
	remote := t.TempDir()

	cfg := &config.Config{
		DataDir: filepath.Join(t.TempDir(), "state"),
		Projects: []config.Project{{
			ID:         "site",
			Name:       "site",
			LocalPath:  local,
			RemoteRoot: "",
			Protocol:   "local",
			Host:       remote,
		}},
	}
	return cfg, &cfg.Projects[0], remote
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestEngine_FullPipeline(t *testing.T) {
	cfg, project, remote := testSetup(t)

	big := bytes.Repeat([]byte("deploysync"), delta.MinDeltaFileSize/10+1)
	writeFile(t, project.LocalPath, "big.bin", big)
	writeFile(t, project.LocalPath, "index.html", []byte("<html></html>"))

	emitter := events.NewChanEmitter(1024)
	engine := NewEngine(cfg, emitter, nil)

	result, err := engine.Sync(context.Background(), project, "first deploy")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"big.bin", "index.html"}, result.Uploaded)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.SnapshotID)

	got, err := os.ReadFile(filepath.Join(remote, "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, big, got)

	// snapshot recorded with the sync message
	hist, err := engine.History().Load(project.ID)
	require.NoError(t, err)
	require.Len(t, hist.Snapshots, 1)
	assert.Equal(t, "first deploy", hist.Snapshots[0].Message)
	assert.Equal(t, 2, hist.Snapshots[0].FilesCount)

	// session completed and closed in the ledger
	ledger, err := engine.Sessions().Load()
	require.NoError(t, err)
	require.Contains(t, ledger.Sessions, result.SessionID)
	assert.True(t, ledger.Sessions[result.SessionID].Completed)
	assert.Nil(t, ledger.OpenSession(project.ID))

	// signature cache persisted for both paths
	cache, err := engine.CacheStore().Load(project.ID)
	require.NoError(t, err)
	assert.Len(t, cache.Signatures, 2)

	// event stream: connecting first, complete last
	emitter.Close()
	var kinds []events.EventKind
	for ev := range emitter.Events() {
		kinds = append(kinds, ev.Event)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, events.EventConnecting, kinds[0])
	assert.Equal(t, events.EventComplete, kinds[len(kinds)-1])
	assert.Contains(t, kinds, events.EventAnalyzing)
	assert.Contains(t, kinds, events.EventFileComplete)
}

func TestEngine_SecondSyncSkipsUnchangedLargeFiles(t *testing.T) {
	cfg, project, _ := testSetup(t)

	big := bytes.Repeat([]byte("0123456789abcdef"), delta.MinDeltaFileSize/16+1)
	writeFile(t, project.LocalPath, "big.bin", big)

	engine := NewEngine(cfg, nil, nil)

	first, err := engine.Sync(context.Background(), project, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"big.bin"}, first.Uploaded)

	second, err := engine.Sync(context.Background(), project, "")
	require.NoError(t, err)
	assert.Empty(t, second.Uploaded)
	assert.Empty(t, second.SnapshotID)
	assert.Equal(t, 1, second.Stats.UnchangedFiles)
	assert.InDelta(t, 100.0, second.Stats.SavingsPercent, 0.01)

	// no-op syncs do not accumulate snapshots
	hist, err := engine.History().Load(project.ID)
	require.NoError(t, err)
	assert.Len(t, hist.Snapshots, 1)
}

func TestEngine_DeletedFileSettlesCache(t *testing.T) {
	cfg, project, _ := testSetup(t)

	big := bytes.Repeat([]byte("x"), delta.MinDeltaFileSize)
	writeFile(t, project.LocalPath, "keep.bin", big)
	writeFile(t, project.LocalPath, "gone.bin", big)

	engine := NewEngine(cfg, nil, nil)
	_, err := engine.Sync(context.Background(), project, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(project.LocalPath, "gone.bin")))

	result, err := engine.Sync(context.Background(), project, "")
	require.NoError(t, err)
	assert.Empty(t, result.Uploaded)
	assert.Equal(t, []string{"gone.bin"}, result.Deleted)

	cache, err := engine.CacheStore().Load(project.ID)
	require.NoError(t, err)
	assert.NotContains(t, cache.Signatures, "gone.bin")
	assert.Contains(t, cache.Signatures, "keep.bin")
}

func TestEngine_Analyze(t *testing.T) {
	cfg, project, remote := testSetup(t)
	writeFile(t, project.LocalPath, "a.txt", []byte("hello"))

	engine := NewEngine(cfg, nil, nil)
	deltas, stats, err := engine.Analyze(context.Background(), project)
	require.NoError(t, err)

	require.Len(t, deltas, 1)
	assert.Equal(t, delta.StatusNew, deltas[0].Status)
	assert.Equal(t, 1, stats.NewFiles)

	// dry run: nothing reached the remote
	entries, err := os.ReadDir(remote)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_CancelWithoutRunningSync(t *testing.T) {
	cfg, _, _ := testSetup(t)
	engine := NewEngine(cfg, nil, nil)
	assert.False(t, engine.Cancel("site"))
}

type failDialer struct{}

func (failDialer) Dial(ctx context.Context) (transfer.Conn, error) {
	return nil, errors.New("530 login incorrect")
}

func TestEngine_FailedSyncStillRecordsSnapshot(t *testing.T) {
	cfg, project, _ := testSetup(t)
	writeFile(t, project.LocalPath, "index.html", []byte("<html>"))

	engine := NewEngine(cfg, nil, func(*config.Project) (transfer.Dialer, error) {
		return failDialer{}, nil
	})

	result, err := engine.Sync(context.Background(), project, "doomed deploy")
	require.Error(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.SnapshotID)

	// the pre-sync snapshot is in history, so its backup tree stays reachable
	// (and evictable) even though the upload wave failed
	hist, err := engine.History().Load(project.ID)
	require.NoError(t, err)
	require.Len(t, hist.Snapshots, 1)

	snap := hist.GetSnapshot(result.SnapshotID)
	require.NotNil(t, snap)
	require.NotEmpty(t, snap.Files)
	for _, f := range snap.Files {
		require.NotEmpty(t, f.BackupPath)
		assert.FileExists(t, f.BackupPath)
	}
}

type gatedDialer struct {
	inner   transfer.Dialer
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *gatedDialer) Dial(ctx context.Context) (transfer.Conn, error) {
	d.once.Do(func() { close(d.started) })
	select {
	case <-d.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.inner.Dial(ctx)
}

func TestEngine_RejectsConcurrentSyncPerProject(t *testing.T) {
	cfg, project, remote := testSetup(t)
	writeFile(t, project.LocalPath, "a.txt", []byte("hello"))

	gate := &gatedDialer{
		inner:   transfer.NewLocalDirDialer(remote),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(cfg, nil, func(*config.Project) (transfer.Dialer, error) {
		return gate, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := engine.Sync(context.Background(), project, "")
		done <- err
	}()

	select {
	case <-gate.started:
	case err := <-done:
		t.Fatalf("sync finished before dialing: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the first sync to dial")
	}

	_, err := engine.Sync(context.Background(), project, "")
	assert.ErrorContains(t, err, "sync already running")

	close(gate.release)
	require.NoError(t, <-done)

	// registry released: a new sync may start
	_, err = engine.Sync(context.Background(), project, "")
	require.NoError(t, err)
}
