// Package syncer composes the engine pipeline: analyze the local tree,
// snapshot it, upload the changed set in parallel, then settle the signature
// cache and the session ledger.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/deploysync/deploysync/internal/config"
	"github.com/deploysync/deploysync/internal/delta"
	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/history"
	"github.com/deploysync/deploysync/internal/resume"
	"github.com/deploysync/deploysync/internal/syncerr"
	"github.com/deploysync/deploysync/internal/transfer"
)

// Global progress layout: connecting and analysis occupy [0, 20), uploads map
// onto [20, 90], finalization runs to 100.
const (
	progressAnalyzing    = 10
	progressTransferBase = 20
	progressTransferSpan = 70
)

// DialerFactory builds the transport for a project. The default factory only
// understands the "local" protocol; network transports are injected by the
// caller.
type DialerFactory func(p *config.Project) (transfer.Dialer, error)

func DefaultDialerFactory(p *config.Project) (transfer.Dialer, error) {
	switch p.Protocol {
	case "local":
		return transfer.NewLocalDirDialer(p.Host), nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", p.Protocol)
	}
}

// Result summarizes one completed sync.
type Result struct {
	Stats      delta.TransferStats
	SessionID  string
	SnapshotID string
	Uploaded   []string
	Deleted    []string
	Duration   time.Duration
}

// Engine owns the per-project state stores and the in-flight sync registry.
// One Engine per data directory; safe for concurrent use across projects.
type Engine struct {
	analyzer *delta.Analyzer
	history  *history.Store
	sessions *resume.Store
	dialers  DialerFactory
	emitter  events.Emitter

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewEngine(cfg *config.Config, emitter events.Emitter, dialers DialerFactory) *Engine {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if dialers == nil {
		dialers = DefaultDialerFactory
	}
	return &Engine{
		analyzer: delta.NewAnalyzer(delta.NewCacheStore(cfg.DeltaCacheDir())),
		history:  history.NewStore(cfg.HistoryDir(), cfg.BackupsDir()),
		sessions: resume.NewStore(cfg.SessionsPath()),
		dialers:  dialers,
		emitter:  emitter,
		running:  make(map[string]context.CancelFunc),
	}
}

func (e *Engine) History() *history.Store {
	return e.history
}

func (e *Engine) Sessions() *resume.Store {
	return e.sessions
}

func (e *Engine) CacheStore() *delta.CacheStore {
	return e.analyzer.Store()
}

// Cancel requests cancellation of the project's running sync. It returns
// false when no sync is in flight. Files already uploading finish; no new
// files start.
func (e *Engine) Cancel(projectID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.running[projectID]
	if ok {
		cancel()
	}
	return ok
}

func (e *Engine) register(ctx context.Context, projectID string) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.running[projectID]; busy {
		return nil, nil, fmt.Errorf("sync already running for project %s", projectID)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.running[projectID] = cancel

	release := func() {
		e.mu.Lock()
		delete(e.running, projectID)
		e.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

// Analyze runs the delta pass without transferring anything.
func (e *Engine) Analyze(ctx context.Context, p *config.Project) ([]*delta.FileDelta, delta.TransferStats, error) {
	cache, err := e.analyzer.Store().Load(p.ID)
	if err != nil {
		return nil, delta.TransferStats{}, err
	}

	deltas, err := e.analyzer.AnalyzeTree(ctx, p.LocalPath, cache)
	if err != nil {
		return nil, delta.TransferStats{}, err
	}
	return deltas, delta.ComputeStats(deltas), nil
}

// Sync runs the full pipeline for one project. A second Sync for the same
// project while one is in flight fails immediately.
func (e *Engine) Sync(ctx context.Context, p *config.Project, message string) (*Result, error) {
	ctx, release, err := e.register(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	result, err := e.sync(ctx, p, message, started)
	if err != nil {
		if syncerr.IsCancelled(err) {
			e.emit(p.ID, events.EventCancelled, 0, "sync cancelled")
		} else {
			e.emit(p.ID, events.EventError, 0, err.Error())
		}
		return result, err
	}

	e.emit(p.ID, events.EventComplete, 100,
		fmt.Sprintf("%d file(s) uploaded in %s", len(result.Uploaded), result.Duration.Round(time.Millisecond)))
	return result, nil
}

func (e *Engine) sync(ctx context.Context, p *config.Project, message string, started time.Time) (*Result, error) {
	e.emit(p.ID, events.EventConnecting, 0, "")

	dialer, err := e.dialers(p)
	if err != nil {
		return nil, syncerr.New(syncerr.KindTransport, "", err)
	}

	e.emit(p.ID, events.EventAnalyzing, progressAnalyzing, "")

	cache, err := e.analyzer.Store().Load(p.ID)
	if err != nil {
		return nil, err
	}
	deltas, err := e.analyzer.AnalyzeTree(ctx, p.LocalPath, cache)
	if err != nil {
		if ctx.Err() != nil {
			return nil, syncerr.New(syncerr.KindCancelled, "", ctx.Err())
		}
		return nil, syncerr.New(syncerr.KindIO, p.LocalPath, err)
	}

	stats := delta.ComputeStats(deltas)
	result := &Result{Stats: stats}
	slog.Info("delta analysis",
		"project", p.ID,
		"files", stats.TotalFiles,
		"transfer_size", stats.TransferSize,
		"savings_pct", fmt.Sprintf("%.1f", stats.SavingsPercent))

	var toTransfer []*delta.FileDelta
	for _, d := range deltas {
		switch {
		case d.NeedsTransfer():
			toTransfer = append(toTransfer, d)
		case d.Status == delta.StatusDeleted:
			result.Deleted = append(result.Deleted, d.Path)
		}
	}

	if len(toTransfer) == 0 && len(result.Deleted) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	// snapshot the tree as it is about to be deployed
	snapshot, err := history.CreateSnapshot(ctx, p.ID, p.LocalPath, e.history.BackupDir(p.ID), message)
	if err != nil {
		if ctx.Err() != nil {
			return result, syncerr.New(syncerr.KindCancelled, "", ctx.Err())
		}
		return result, syncerr.New(syncerr.KindIO, p.LocalPath, err)
	}

	// record it before the upload wave so its backup tree is always reachable
	// from history metadata, even when the wave fails
	hist, err := e.history.Load(p.ID)
	if err != nil {
		return result, err
	}
	hist.AddSnapshot(*snapshot)
	if err := e.history.Save(hist); err != nil {
		return result, err
	}
	result.SnapshotID = snapshot.ID

	session, ledger, err := e.openSession(p, toTransfer)
	if err != nil {
		return result, err
	}
	result.SessionID = session.ID

	orch := transfer.NewOrchestrator(dialer, transfer.Options{
		ProjectID:    p.ID,
		LocalRoot:    p.LocalPath,
		RemoteRoot:   p.RemoteRoot,
		Connections:  p.Connections,
		BaseProgress: progressTransferBase,
		ProgressSpan: progressTransferSpan,
		Emitter:      e.emitter,
		Ledger:       session,
	})
	runErr := orch.Run(ctx, toTransfer)

	// settle state for whatever made it through, even on failure
	for path, f := range session.Files {
		if f.Status == resume.StatusCompleted {
			result.Uploaded = append(result.Uploaded, path)
		}
	}

	synced := append(append([]string(nil), result.Uploaded...), result.Deleted...)
	if len(synced) > 0 {
		if err := e.analyzer.UpdateCacheAfterSync(cache, p.LocalPath, synced); err != nil {
			slog.Warn("signature cache update failed", "project", p.ID, "error", err)
		}
	}

	if session.IsComplete() {
		ledger.CompleteSession(session.ID)
	}
	if err := e.sessions.Save(ledger); err != nil {
		slog.Warn("session ledger save failed", "project", p.ID, "error", err)
	}

	if runErr != nil {
		return result, runErr
	}

	result.Duration = time.Since(started)
	return result, nil
}

// openSession reuses the project's open session so partially transferred
// files keep their byte offsets, registering any paths the session has not
// seen (or whose size changed since).
func (e *Engine) openSession(p *config.Project, toTransfer []*delta.FileDelta) (*resume.TransferSession, *resume.TransferSessionStore, error) {
	ledger, err := e.sessions.Load()
	if err != nil {
		return nil, nil, err
	}

	session := ledger.OpenSession(p.ID)
	if session == nil {
		session = ledger.CreateSession(p.ID)
	} else {
		slog.Info("resuming transfer session", "project", p.ID, "session", session.ID)
	}

	for _, d := range toTransfer {
		if f, ok := session.Files[d.Path]; ok && f.TotalSize == d.TotalSize && !f.Status.Terminal() {
			continue
		}
		localPath := filepath.Join(p.LocalPath, filepath.FromSlash(d.Path))
		session.AddFile(d.Path, localPath, path.Join(p.RemoteRoot, d.Path), d.TotalSize)
	}

	if err := e.sessions.Save(ledger); err != nil {
		return nil, nil, err
	}
	return session, ledger, nil
}

func (e *Engine) emit(projectID string, kind events.EventKind, progress int, message string) {
	e.emitter.Emit(events.ProgressEvent{
		ProjectID: projectID,
		Event:     kind,
		Progress:  progress,
		Message:   message,
	})
}
