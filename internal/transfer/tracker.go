package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/deploysync/deploysync/internal/events"
)

// maxFailures is the fail-stop threshold: once this many files have failed,
// no new uploads start. Already-running uploads are not preempted.
const maxFailures = 3

// ProgressTracker is shared by all upload workers of one wave. Global
// progress advances linearly with completed file count inside the
// [base, base+span] window, independent of per-file size.
type ProgressTracker struct {
	projectID  string
	totalFiles int
	base       int
	span       int

	completed atomic.Int64
	failed    atomic.Int64
	current   atomic.Int64

	mu     sync.Mutex
	errors []string

	emitter events.Emitter
}

func NewProgressTracker(projectID string, totalFiles int, emitter events.Emitter, base, span int) *ProgressTracker {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	t := &ProgressTracker{
		projectID:  projectID,
		totalFiles: totalFiles,
		base:       base,
		span:       span,
		emitter:    emitter,
	}
	t.current.Store(int64(base))
	return t
}

func (t *ProgressTracker) FileStart(file string, size int64) {
	t.emitter.Emit(events.ProgressEvent{
		ProjectID:  t.projectID,
		Event:      events.EventFileStart,
		File:       file,
		Progress:   int(t.current.Load()),
		BytesTotal: size,
	})
}

func (t *ProgressTracker) FileProgress(file string, sent, total int64) {
	fileProgress := 100
	if total > 0 {
		fileProgress = int(float64(sent) / float64(total) * 100.0)
	}
	t.emitter.Emit(events.ProgressEvent{
		ProjectID:    t.projectID,
		Event:        events.EventFileProgress,
		File:         file,
		Progress:     int(t.current.Load()),
		FileProgress: fileProgress,
		BytesSent:    sent,
		BytesTotal:   total,
	})
}

func (t *ProgressTracker) FileComplete(file string, size int64) {
	completed := t.completed.Add(1)
	progress := t.progressFor(completed)
	t.current.Store(int64(progress))

	t.emitter.Emit(events.ProgressEvent{
		ProjectID:    t.projectID,
		Event:        events.EventFileComplete,
		File:         file,
		Progress:     progress,
		FileProgress: 100,
		BytesSent:    size,
		BytesTotal:   size,
	})
}

func (t *ProgressTracker) FileError(file string, err error, size int64) {
	t.failed.Add(1)

	t.mu.Lock()
	t.errors = append(t.errors, fmt.Sprintf("%s: %v", file, err))
	t.mu.Unlock()

	t.emitter.Emit(events.ProgressEvent{
		ProjectID:  t.projectID,
		Event:      events.EventFileError,
		File:       file,
		Progress:   int(t.current.Load()),
		BytesTotal: size,
		Message:    err.Error(),
	})
}

func (t *ProgressTracker) progressFor(completed int64) int {
	if t.totalFiles == 0 {
		return t.base + t.span
	}
	return t.base + int(completed*int64(t.span)/int64(t.totalFiles))
}

// ShouldStop reports whether the failure threshold was reached. Workers
// consult it before starting a new file.
func (t *ProgressTracker) ShouldStop() bool {
	return t.failed.Load() >= maxFailures
}

func (t *ProgressTracker) Completed() int {
	return int(t.completed.Load())
}

func (t *ProgressTracker) Failed() int {
	return int(t.failed.Load())
}

func (t *ProgressTracker) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.errors))
	copy(out, t.errors)
	return out
}
