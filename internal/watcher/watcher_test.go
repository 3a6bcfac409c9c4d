package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ansa-fs/internal/tree"
)

const waitFor = 3 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(typ EventType, path string) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Type == typ && (path == "" || ev.Path == path) {
			n++
		}
	}
	return n
}

// waitUntil polls cond until it holds or the deadline passes.
func (r *recorder) waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(waitFor)
	for !cond() {
		select {
		case <-r.notify:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("condition not met, events: %+v", r.snapshot())
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.UpdateInterval = 50 * time.Millisecond
	opts.Extract.IncludeSize = true
	return opts
}

func startWatcher(t *testing.T, dir string, opts Options) (*Watcher, *recorder) {
	t.Helper()
	rec := newRecorder()
	w, err := New(context.Background(), dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	w.On(EventAll, rec.handle)
	w.On(EventError, rec.handle)
	ready := make(chan struct{})
	w.On(EventReady, func(Event) { close(ready) })
	w.Start()

	select {
	case <-ready:
	case <-time.After(waitFor):
		t.Fatal("watcher never became ready")
	}
	return w, rec
}

func findNode(root *tree.Node, rel string) *tree.Node {
	return root.Flatten()[rel]
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0644))

	w, rec := startWatcher(t, dir, testOptions())

	for _, content := range []string{"22", "333", "4444"} {
		require.NoError(t, os.WriteFile(file, []byte(content), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	rec.waitUntil(t, func() bool { return rec.count(EventChange, file) > 0 })
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 1, rec.count(EventChange, file))

	node := findNode(w.Structure(), "a.txt")
	require.NotNil(t, node)
	assert.Equal(t, int64(4), *node.Size)
}

func TestWatcher_AddAndUnlink(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())

	file := filepath.Join(dir, "new.go")
	require.NoError(t, os.WriteFile(file, []byte("package x\n"), 0644))
	rec.waitUntil(t, func() bool { return rec.count(EventAdd, file) == 1 })
	assert.NotNil(t, findNode(w.Structure(), "new.go"))

	require.NoError(t, os.Remove(file))
	rec.waitUntil(t, func() bool { return rec.count(EventUnlink, file) == 1 })
	assert.Nil(t, findNode(w.Structure(), "new.go"))

	for _, ev := range rec.snapshot() {
		if ev.Type == EventUnlink {
			assert.Same(t, w.Structure(), ev.Tree)
		}
	}
}

func TestWatcher_AddDirectoryWithContents(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0644))

	rec.waitUntil(t, func() bool {
		return rec.count(EventAddDir, sub) == 1 && findNode(w.Structure(), "pkg/inner.txt") != nil
	})

	// the new directory is watched, so later changes inside it are seen
	late := filepath.Join(sub, "late.txt")
	require.NoError(t, os.WriteFile(late, []byte("y"), 0644))
	rec.waitUntil(t, func() bool { return rec.count(EventAdd, late) == 1 })
	assert.NotNil(t, findNode(w.Structure(), "pkg/late.txt"))

	require.NoError(t, os.RemoveAll(sub))
	rec.waitUntil(t, func() bool { return rec.count(EventUnlinkDir, sub) == 1 })
	assert.Nil(t, findNode(w.Structure(), "pkg"))
}

func TestWatcher_IgnoredPathsProduceNoEvents(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())

	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0644))
	marker := filepath.Join(dir, "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("m"), 0644))

	rec.waitUntil(t, func() bool { return rec.count(EventAdd, marker) == 1 })

	for _, ev := range rec.snapshot() {
		assert.Equal(t, marker, ev.Path)
	}
	assert.Nil(t, findNode(w.Structure(), "node_modules"))
}

func TestWatcher_CloseStopsEvents(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())
	before := w.Structure()

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("Done not closed after Close")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "after.txt"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.Same(t, before, w.Structure())
}

func TestWatcher_CloseFromHandler(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())

	second := 0
	w.On(EventAdd, func(Event) { w.Close() })
	w.On(EventAdd, func(Event) { second++ })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0644))

	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, 0, second)
	assert.Equal(t, 0, rec.count(EventAdd, ""))
}

func TestWatcher_CloseDropsPendingBatch(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.UpdateInterval = 300 * time.Millisecond
	w, rec := startWatcher(t, dir, opts)
	before := w.Structure()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0644))
	require.NoError(t, w.Close())

	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("Done not closed after Close")
	}
	time.Sleep(2 * opts.UpdateInterval)

	assert.Empty(t, rec.snapshot())
	assert.Same(t, before, w.Structure())
}

// gatedReporter blocks the first Step after it is armed until release is
// closed.
type gatedReporter struct {
	armed   atomic.Bool
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedReporter() *gatedReporter {
	return &gatedReporter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReporter) Start(int) {}
func (g *gatedReporter) Finish() {}

func (g *gatedReporter) Step(string) {
	if !g.armed.Load() {
		return
	}
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

func TestWatcher_CloseDuringExtraction(t *testing.T) {
	dir := t.TempDir()
	gate := newGatedReporter()
	opts := testOptions()
	opts.Extract.IncludeHash = true
	opts.Extract.Progress = gate
	w, rec := startWatcher(t, dir, opts)
	before := w.Structure()

	gate.armed.Store(true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow.txt"), []byte("x"), 0644))

	select {
	case <-gate.entered:
	case <-time.After(waitFor):
		t.Fatal("re-extraction never started")
	}
	require.NoError(t, w.Close())

	// the loop stops without waiting for the extraction
	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("Done not closed while extraction was blocked")
	}
	close(gate.release)
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.Same(t, before, w.Structure())
}

func TestWatcher_CloseDuringHandler(t *testing.T) {
	dir := t.TempDir()
	w, rec := startWatcher(t, dir, testOptions())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var later atomic.Int32
	w.On(EventAdd, func(Event) {
		once.Do(func() { close(entered) })
		<-release
	})
	w.On(EventAdd, func(Event) { later.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0644))

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("add handler never ran")
	}

	closed := make(chan struct{})
	go func() {
		w.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close waited for a running handler")
	}

	// the running handler still owns the loop
	select {
	case <-w.Done():
		t.Fatal("Done closed while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, int32(0), later.Load())
	assert.Equal(t, 0, rec.count(EventAdd, ""))
}

func TestWatcher_ReadyIsSticky(t *testing.T) {
	dir := t.TempDir()
	w, _ := startWatcher(t, dir, testOptions())

	var got []Event
	w.On(EventReady, func(ev Event) { got = append(got, ev) })

	require.Len(t, got, 1)
	assert.Equal(t, w.root, got[0].Path)
	assert.Same(t, w.Structure(), got[0].Tree)
}

func TestWatcher_InitialEvents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main\n"), 0644))

	opts := testOptions()
	opts.IgnoreInitial = false

	rec := newRecorder()
	w, err := WatchFunc(context.Background(), dir, rec.handle, opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	rec.waitUntil(t, func() bool { return len(rec.snapshot()) == 2 })

	events := rec.snapshot()
	assert.Equal(t, EventAddDir, events[0].Type)
	assert.Equal(t, filepath.Join(w.root, "src"), events[0].Path)
	assert.Equal(t, EventAdd, events[1].Type)
	assert.Equal(t, filepath.Join(w.root, "src", "main.go"), events[1].Path)
}

func TestWatch_NonexistentDirectory(t *testing.T) {
	w, err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), testOptions())
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestWatcher_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := Watch(ctx, t.TempDir(), testOptions())
	require.NoError(t, err)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop after cancel")
	}
	assert.True(t, w.isClosed())
}

func TestWatcher_RootRemovedFails(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "root")
	require.NoError(t, os.Mkdir(dir, 0755))

	w, rec := startWatcher(t, dir, testOptions())
	require.NoError(t, os.RemoveAll(dir))

	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop after root removal")
	}

	require.Equal(t, 1, rec.count(EventError, ""))
	for _, ev := range rec.snapshot() {
		if ev.Type == EventError {
			assert.Error(t, ev.Err)
		}
	}
}

func TestNew_CloseBeforeStart(t *testing.T) {
	w, err := New(context.Background(), t.TempDir(), testOptions())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w.Start()
	select {
	case <-w.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestDedupe(t *testing.T) {
	in := []rawEvent{
		{typ: EventChange, path: "/r/b"},
		{typ: EventAdd, path: "/r/a"},
		{typ: EventChange, path: "/r/a"},
		{typ: EventAdd, path: "/r/a"},
		{typ: EventUnlink, path: "/r/c"},
		{typ: EventChange, path: "/r/b"},
	}

	assert.Equal(t, []rawEvent{
		{typ: EventChange, path: "/r/b"},
		{typ: EventAdd, path: "/r/a"},
		{typ: EventUnlink, path: "/r/c"},
	}, dedupe(in))
	assert.Empty(t, dedupe(nil))
}

func TestOff(t *testing.T) {
	w, err := New(context.Background(), t.TempDir(), testOptions())
	require.NoError(t, err)
	defer w.Close()

	calls := 0
	sub := w.On(EventAdd, func(Event) { calls++ })
	w.On(EventAdd, func(Event) { calls += 10 })
	w.Off(EventAdd, sub)

	w.emit(Event{Type: EventAdd, Path: "/x"})
	assert.Equal(t, 10, calls)
}
