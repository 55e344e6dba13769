package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploysync/deploysync/internal/delta"
	"github.com/deploysync/deploysync/internal/events"
	"github.com/deploysync/deploysync/internal/resume"
	"github.com/deploysync/deploysync/internal/syncerr"
)

// fakeDialer is an in-memory transport instrumented with a concurrency gauge.
type fakeDialer struct {
	mu      sync.Mutex
	files   map[string][]byte
	mkdirs  map[string]int
	creates map[string]int
	appends map[string]int

	failCreate map[string]error
	writeDelay time.Duration

	active    atomic.Int64
	maxActive atomic.Int64
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		files:      make(map[string][]byte),
		mkdirs:     make(map[string]int),
		creates:    make(map[string]int),
		appends:    make(map[string]int),
		failCreate: make(map[string]error),
	}
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	active := d.active.Add(1)
	for {
		max := d.maxActive.Load()
		if active <= max || d.maxActive.CompareAndSwap(max, active) {
			break
		}
	}
	return &fakeConn{d: d}, nil
}

func (d *fakeDialer) content(path string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.files[path]
}

type fakeConn struct {
	d      *fakeDialer
	closed bool
}

func (c *fakeConn) Mkdir(path string) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.mkdirs[path]++
	if c.d.mkdirs[path] > 1 {
		return errors.New("550 directory already exists")
	}
	return nil
}

func (c *fakeConn) Create(path string) (io.WriteCloser, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if err, ok := c.d.failCreate[path]; ok {
		return nil, err
	}
	c.d.creates[path]++
	c.d.files[path] = nil
	return &fakeWriter{d: c.d, path: path}, nil
}

func (c *fakeConn) Append(path string) (io.WriteCloser, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.appends[path]++
	return &fakeWriter{d: c.d, path: path}, nil
}

func (c *fakeConn) Size(path string) (int64, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return int64(len(c.d.files[path])), nil
}

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		c.d.active.Add(-1)
	}
	return nil
}

type fakeWriter struct {
	d    *fakeDialer
	path string
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.d.writeDelay > 0 {
		time.Sleep(w.d.writeDelay)
	}
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	w.d.files[w.path] = append(w.d.files[w.path], p...)
	return len(p), nil
}

func (w *fakeWriter) Close() error { return nil }

func writeLocal(t *testing.T, root, rel string, data []byte) *delta.FileDelta {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return &delta.FileDelta{
		Path:         rel,
		Status:       delta.StatusNew,
		TotalSize:    int64(len(data)),
		TransferSize: int64(len(data)),
	}
}

func TestOrchestrator_UploadsAllFiles(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	deltas := []*delta.FileDelta{
		writeLocal(t, root, "index.html", []byte("<html>")),
		writeLocal(t, root, "assets/app.js", []byte("console.log(1)")),
		{Path: "skip.txt", Status: delta.StatusUnchanged},
	}

	o := NewOrchestrator(dialer, Options{
		ProjectID:  "p1",
		LocalRoot:  root,
		RemoteRoot: "/www",
	})
	require.NoError(t, o.Run(context.Background(), deltas))

	assert.Equal(t, []byte("<html>"), dialer.content("/www/index.html"))
	assert.Equal(t, []byte("console.log(1)"), dialer.content("/www/assets/app.js"))
	assert.Equal(t, 2, o.Tracker().Completed())
	assert.NotContains(t, dialer.files, "/www/skip.txt")
}

func TestOrchestrator_BoundsConcurrency(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()
	dialer.writeDelay = 5 * time.Millisecond

	var deltas []*delta.FileDelta
	for i := 0; i < 10; i++ {
		deltas = append(deltas, writeLocal(t, root, fmt.Sprintf("f%02d.bin", i), bytes.Repeat([]byte{byte(i)}, 2048)))
	}

	o := NewOrchestrator(dialer, Options{
		ProjectID:   "p1",
		LocalRoot:   root,
		Connections: 4,
	})
	require.NoError(t, o.Run(context.Background(), deltas))

	assert.Equal(t, 10, o.Tracker().Completed())
	assert.LessOrEqual(t, dialer.maxActive.Load(), int64(4))
}

func TestOrchestrator_ConnectionCapIsEight(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()
	dialer.writeDelay = 2 * time.Millisecond

	var deltas []*delta.FileDelta
	for i := 0; i < 20; i++ {
		deltas = append(deltas, writeLocal(t, root, fmt.Sprintf("f%02d.bin", i), []byte("data")))
	}

	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root, Connections: 32})
	require.NoError(t, o.Run(context.Background(), deltas))
	assert.LessOrEqual(t, dialer.maxActive.Load(), int64(MaxConnections))
}

func TestOrchestrator_AggregatesErrors(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	deltas := []*delta.FileDelta{
		writeLocal(t, root, "good.txt", []byte("ok")),
		writeLocal(t, root, "bad.txt", []byte("boom")),
	}
	dialer.failCreate["bad.txt"] = errors.New("553 permission denied")

	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root})
	err := o.Run(context.Background(), deltas)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "bad.txt")
	assert.Contains(t, err.Error(), "553 permission denied")
	kind, ok := syncerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, syncerr.KindTransport, kind)

	// partial success is not rolled back
	assert.Equal(t, []byte("ok"), dialer.content("good.txt"))
}

func TestOrchestrator_FailStopAfterThreeFailures(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	// smallest-first ordering makes the three failing 1-byte files dispatch
	// before the larger healthy ones
	var deltas []*delta.FileDelta
	for i := 0; i < 3; i++ {
		rel := fmt.Sprintf("fail%d.txt", i)
		deltas = append(deltas, writeLocal(t, root, rel, []byte("x")))
		dialer.failCreate[rel] = errors.New("connection reset")
	}
	for i := 0; i < 5; i++ {
		deltas = append(deltas, writeLocal(t, root, fmt.Sprintf("later%d.txt", i), bytes.Repeat([]byte("y"), 4096)))
	}

	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root, Connections: 1})
	err := o.Run(context.Background(), deltas)
	require.Error(t, err)

	assert.Equal(t, 3, o.Tracker().Failed())
	assert.Equal(t, 0, o.Tracker().Completed())
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	deltas := []*delta.FileDelta{writeLocal(t, root, "a.txt", []byte("a"))}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root})
	err := o.Run(ctx, deltas)
	require.Error(t, err)
	assert.True(t, syncerr.IsCancelled(err))
	assert.Equal(t, 0, o.Tracker().Completed())
}

func TestOrchestrator_ResumeFromMatchingOffset(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	data := bytes.Repeat([]byte("abcdefgh"), 131072) // 1 MiB
	d := writeLocal(t, root, "big.bin", data)

	session := resume.NewSession("p1")
	session.AddFile("big.bin", filepath.Join(root, "big.bin"), "big.bin", int64(len(data)))
	session.UpdateProgress("big.bin", 4096)

	// remote already holds exactly the recorded prefix
	dialer.files["big.bin"] = append([]byte(nil), data[:4096]...)

	o := NewOrchestrator(dialer, Options{
		ProjectID: "p1",
		LocalRoot: root,
		Ledger:    session,
	})
	require.NoError(t, o.Run(context.Background(), []*delta.FileDelta{d}))

	assert.Equal(t, data, dialer.content("big.bin"))
	assert.Equal(t, 1, dialer.appends["big.bin"])
	assert.Equal(t, 0, dialer.creates["big.bin"])

	f := session.Files["big.bin"]
	assert.Equal(t, resume.StatusCompleted, f.Status)
	assert.Equal(t, f.TotalSize, f.TransferredBytes)
}

func TestOrchestrator_ResumeMismatchRestartsFromZero(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	data := bytes.Repeat([]byte("01234567"), 131072)
	d := writeLocal(t, root, "big.bin", data)

	session := resume.NewSession("p1")
	session.AddFile("big.bin", filepath.Join(root, "big.bin"), "big.bin", int64(len(data)))
	session.UpdateProgress("big.bin", 4096)

	// remote diverged: it holds nothing
	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root, Ledger: session})
	require.NoError(t, o.Run(context.Background(), []*delta.FileDelta{d}))

	assert.Equal(t, data, dialer.content("big.bin"))
	assert.Equal(t, 1, dialer.creates["big.bin"])
	assert.Equal(t, 0, dialer.appends["big.bin"])
	assert.Equal(t, int64(len(data)), session.Files["big.bin"].TransferredBytes)
}

func TestOrchestrator_CreatesRemoteDirsOnce(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	deltas := []*delta.FileDelta{
		writeLocal(t, root, "assets/js/a.js", []byte("a")),
		writeLocal(t, root, "assets/js/b.js", []byte("b")),
		writeLocal(t, root, "assets/css/c.css", []byte("c")),
	}

	o := NewOrchestrator(dialer, Options{ProjectID: "p1", LocalRoot: root, RemoteRoot: "/www"})
	require.NoError(t, o.Run(context.Background(), deltas))

	assert.Equal(t, 1, dialer.mkdirs["/www"])
	assert.Equal(t, 1, dialer.mkdirs["/www/assets"])
	assert.Equal(t, 1, dialer.mkdirs["/www/assets/js"])
	assert.Equal(t, 1, dialer.mkdirs["/www/assets/css"])
}

func TestOrchestrator_ProgressWindow(t *testing.T) {
	root := t.TempDir()
	dialer := newFakeDialer()

	var deltas []*delta.FileDelta
	for i := 0; i < 4; i++ {
		deltas = append(deltas, writeLocal(t, root, fmt.Sprintf("f%d.txt", i), []byte("x")))
	}

	emitter := events.NewChanEmitter(256)
	o := NewOrchestrator(dialer, Options{
		ProjectID:    "p1",
		LocalRoot:    root,
		Connections:  1,
		BaseProgress: 20,
		ProgressSpan: 70,
		Emitter:      emitter,
	})
	require.NoError(t, o.Run(context.Background(), deltas))
	emitter.Close()

	var completes []int
	for ev := range emitter.Events() {
		if ev.Event == events.EventFileComplete {
			completes = append(completes, ev.Progress)
		}
	}
	assert.Equal(t, []int{37, 55, 72, 90}, completes)
}

func TestTaskQueue_SmallestFirst(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(&Task{Path: "large", Size: 3000})
	q.Enqueue(&Task{Path: "small", Size: 10})
	q.Enqueue(&Task{Path: "mid", Size: 500})

	var order []string
	for {
		task, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, task.Path)
	}
	assert.Equal(t, []string{"small", "mid", "large"}, order)
}

func TestLocalDirDialer_RoundTrip(t *testing.T) {
	root := t.TempDir()
	remote := t.TempDir()

	data := bytes.Repeat([]byte("z"), 4096)
	d := writeLocal(t, root, "sub/file.bin", data)

	o := NewOrchestrator(NewLocalDirDialer(remote), Options{ProjectID: "p1", LocalRoot: root})
	require.NoError(t, o.Run(context.Background(), []*delta.FileDelta{d}))

	got, err := os.ReadFile(filepath.Join(remote, "sub", "file.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
