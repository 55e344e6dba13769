package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/deploysync/deploysync/internal/delta"
	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/syncerr"
)

const (
	// DefaultConnections is the parallel connection count when unconfigured.
	DefaultConnections = 4

	// MaxConnections caps the pool regardless of configuration.
	MaxConnections = 8

	// uploadChunkSize is the write unit within one file; bytes within a file
	// are written strictly in order.
	uploadChunkSize = 65536
)

// Options configures one upload wave.
type Options struct {
	ProjectID   string
	LocalRoot   string
	RemoteRoot  string
	Connections int

	// Progress window: completed files map linearly onto
	// [BaseProgress, BaseProgress+ProgressSpan].
	BaseProgress int
	ProgressSpan int

	Emitter events.Emitter
	// Ledger, when set, enables byte-offset resume and records progress.
	Ledger ResumeLedger
}

// Orchestrator uploads the changed-file set across a bounded pool of
// independent connections. Files race; only per-file byte order is guaranteed.
type Orchestrator struct {
	dialer  Dialer
	opts    Options
	tracker *ProgressTracker

	dirMu       sync.Mutex
	createdDirs map[string]struct{}
}

func NewOrchestrator(dialer Dialer, opts Options) *Orchestrator {
	if opts.Connections <= 0 {
		opts.Connections = DefaultConnections
	}
	if opts.ProgressSpan <= 0 {
		opts.BaseProgress = 0
		opts.ProgressSpan = 100
	}
	return &Orchestrator{
		dialer:      dialer,
		opts:        opts,
		createdDirs: make(map[string]struct{}),
	}
}

// Tracker exposes counters after Run; nil before.
func (o *Orchestrator) Tracker() *ProgressTracker {
	return o.tracker
}

// Run uploads every delta that needs transfer and blocks until the wave
// drains. It returns nil only if every file succeeded; files that succeeded
// before a failure stay uploaded (no rollback). A cancelled context stops new
// files from starting and surfaces as a Cancelled error.
func (o *Orchestrator) Run(ctx context.Context, deltas []*delta.FileDelta) error {
	queue := NewTaskQueue()
	for _, d := range deltas {
		if !d.NeedsTransfer() {
			continue
		}
		queue.Enqueue(&Task{
			Path:       d.Path,
			LocalPath:  filepath.Join(o.opts.LocalRoot, filepath.FromSlash(d.Path)),
			RemotePath: path.Join(o.opts.RemoteRoot, d.Path),
			Size:       d.TotalSize,
		})
	}

	total := queue.Len()
	o.tracker = NewProgressTracker(o.opts.ProjectID, total, o.opts.Emitter, o.opts.BaseProgress, o.opts.ProgressSpan)
	if total == 0 {
		return nil
	}

	connections := min(o.opts.Connections, total, MaxConnections)
	slog.Info("upload wave", "project", o.opts.ProjectID, "files", total, "connections", connections)

	var g errgroup.Group
	g.SetLimit(connections)

	for {
		task, ok := queue.Dequeue()
		if !ok {
			break
		}
		g.Go(func() error {
			// polled at file-start granularity only; in-flight transfers
			// are not interrupted mid-stream
			if ctx.Err() != nil || o.tracker.ShouldStop() {
				return nil
			}
			o.uploadOne(ctx, task)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return syncerr.New(syncerr.KindCancelled, "", err)
	}

	if errs := o.tracker.Errors(); len(errs) > 0 {
		return syncerr.Newf(syncerr.KindTransport, "",
			"%d file(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (o *Orchestrator) uploadOne(ctx context.Context, task *Task) {
	o.tracker.FileStart(task.Path, task.Size)

	conn, err := o.dialer.Dial(ctx)
	if err != nil {
		o.fail(task, syncerr.New(syncerr.KindTransport, task.Path, err))
		return
	}
	defer conn.Close()

	if err := o.upload(conn, task); err != nil {
		o.fail(task, err)
		return
	}

	if o.opts.Ledger != nil {
		o.opts.Ledger.MarkCompleted(task.Path)
	}
	o.tracker.FileComplete(task.Path, task.Size)
}

func (o *Orchestrator) fail(task *Task, err error) {
	if o.opts.Ledger != nil {
		o.opts.Ledger.MarkFailed(task.Path)
	}
	o.tracker.FileError(task.Path, err, task.Size)
}

func (o *Orchestrator) upload(conn Conn, task *Task) error {
	o.ensureRemoteDirs(conn, path.Dir(task.RemotePath))

	offset := o.resumeOffset(conn, task)

	file, err := os.Open(task.LocalPath)
	if err != nil {
		return syncerr.New(syncerr.KindIO, task.Path, err)
	}
	defer file.Close()

	var w io.WriteCloser
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return syncerr.New(syncerr.KindIO, task.Path, err)
		}
		w, err = conn.Append(task.RemotePath)
	} else {
		w, err = conn.Create(task.RemotePath)
	}
	if err != nil {
		return syncerr.New(syncerr.KindTransport, task.Path, err)
	}

	sent := offset
	buf := make([]byte, uploadChunkSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				w.Close()
				return syncerr.New(syncerr.KindTransport, task.Path, err)
			}
			sent += int64(n)
			o.tracker.FileProgress(task.Path, sent, task.Size)
			if o.opts.Ledger != nil {
				o.opts.Ledger.UpdateProgress(task.Path, sent)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			w.Close()
			return syncerr.New(syncerr.KindIO, task.Path, readErr)
		}
	}

	if err := w.Close(); err != nil {
		return syncerr.New(syncerr.KindTransport, task.Path, err)
	}
	return nil
}

// resumeOffset decides where to start writing. The recorded offset is only
// trusted when the actual remote size matches it exactly; any divergence
// restarts the file from zero — correctness over efficiency.
func (o *Orchestrator) resumeOffset(conn Conn, task *Task) int64 {
	if o.opts.Ledger == nil {
		return 0
	}

	recorded := o.opts.Ledger.Offset(task.Path)
	if recorded <= 0 || recorded >= task.Size {
		return 0
	}

	remoteSize, err := conn.Size(task.RemotePath)
	if err != nil || remoteSize != recorded {
		slog.Warn("resume offset mismatch, restarting",
			"path", task.Path, "recorded", recorded, "remote", remoteSize)
		return 0
	}

	slog.Info("resuming upload", "path", task.Path, "offset", recorded)
	return recorded
}

// ensureRemoteDirs lazily creates the remote directory chain. Results are
// cached across workers; mkdir errors (typically "already exists") are
// swallowed.
func (o *Orchestrator) ensureRemoteDirs(conn Conn, dir string) {
	if dir == "" || dir == "." || dir == "/" {
		return
	}

	parts := strings.Split(strings.Trim(dir, "/"), "/")
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}

	for _, part := range parts {
		current = path.Join(current, part)

		o.dirMu.Lock()
		_, done := o.createdDirs[current]
		if !done {
			o.createdDirs[current] = struct{}{}
		}
		o.dirMu.Unlock()

		if !done {
			if err := conn.Mkdir(current); err != nil {
				slog.Debug("remote mkdir", "dir", current, "error", err)
			}
		}
	}
}
