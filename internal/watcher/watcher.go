// Package watcher keeps an extracted structure current while a directory
// changes, emitting typed events for every settled batch of changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeromicro/go-zero/core/logx"

	"ansa-fs/internal/tree"
	"ansa-fs/internal/walker"
)

type Options struct {
	Extract                walker.Options
	UpdateInterval         time.Duration
	IgnoreInitial          bool
	IgnorePermissionErrors bool
}

func DefaultOptions() Options {
	return Options{
		Extract:                walker.DefaultOptions(),
		UpdateInterval:         100 * time.Millisecond,
		IgnoreInitial:          true,
		IgnorePermissionErrors: true,
	}
}

type batchResult struct {
	events []rawEvent
	tree   *tree.Node
	err    error
}

type Watcher struct {
	root string
	opts Options
	fsw  *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	current atomic.Pointer[tree.Node]

	mu       sync.Mutex
	handlers map[EventType][]subscriber
	nextID   Subscription
	closed   bool
	ready    bool
	started  bool
	pending  []rawEvent
	rescan   bool
	timer    *time.Timer

	flush   chan struct{}
	results chan batchResult
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// owned by the loop goroutine once started
	index       map[string]tree.NodeType
	watched     map[string]struct{}
	extracting  bool
	flushWanted bool
}

// New extracts dir, subscribes to every listed directory and returns a
// watcher that emits nothing until Start. An extraction or subscription
// failure is returned and no watcher exists.
func New(ctx context.Context, dir string, opts Options) (*Watcher, error) {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = DefaultOptions().UpdateInterval
	}
	if opts.Extract.Cache == nil {
		cache, err := walker.NewCache(0)
		if err != nil {
			return nil, err
		}
		opts.Extract.Cache = cache
	}

	initial, err := walker.Extract(ctx, dir, opts.Extract)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		root:     initial.Path,
		opts:     opts,
		fsw:      fsw,
		ctx:      wctx,
		cancel:   cancel,
		handlers: make(map[EventType][]subscriber),
		flush:    make(chan struct{}, 1),
		results:  make(chan batchResult, 1),
		done:     make(chan struct{}),
		watched:  make(map[string]struct{}),
	}
	w.current.Store(initial)
	w.index = indexTypes(initial)

	if err := w.syncWatches(initial); err != nil {
		cancel()
		fsw.Close()
		return nil, err
	}

	logx.Infof("ansa-fs: watching %s (%d directories)", w.root, len(w.watched))
	return w, nil
}

// Watch is New followed by Start.
func Watch(ctx context.Context, dir string, opts Options) (*Watcher, error) {
	w, err := New(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	w.Start()
	return w, nil
}

// WatchFunc registers fn for EventAll before the watcher starts, so it also
// sees initial add events when IgnoreInitial is false.
func WatchFunc(ctx context.Context, dir string, fn Handler, opts Options) (*Watcher, error) {
	w, err := New(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	w.On(EventAll, fn)
	w.Start()
	return w, nil
}

// Start begins delivering events. Calling it more than once has no effect.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.started = true
		w.mu.Unlock()

		go w.run()
	})
}

// Structure returns the tree of the last settled batch.
func (w *Watcher) Structure() *tree.Node {
	return w.current.Load()
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Close stops the watcher. Pending batches and in-flight extractions are
// dropped and no handler is started afterwards. Close does not wait for a
// handler that is already running; wait on Done for that. It is safe to call
// more than once and from handlers.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pending = nil
		started := w.started
		w.mu.Unlock()

		w.cancel()
		err = w.fsw.Close()
		if !started {
			close(w.done)
		}
		logx.Infof("ansa-fs: stopped watching %s", w.root)
	})
	return err
}

func (w *Watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Watcher) run() {
	defer close(w.done)

	if !w.opts.IgnoreInitial {
		w.emitInitial()
	}
	w.emitReady()

	for {
		select {
		case <-w.ctx.Done():
			w.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if raw, ok := w.translate(ev); ok {
				w.enqueue(raw)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		case <-w.flush:
			w.onFlush()
		case res := <-w.results:
			w.onResult(res)
		}
	}
}

// enqueue adds a raw event to the pending batch and restarts the debounce
// timer.
func (w *Watcher) enqueue(events ...rawEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if len(events) == 0 {
		w.rescan = true
	}
	w.pending = append(w.pending, events...)
	if w.timer == nil {
		w.timer = time.AfterFunc(w.opts.UpdateInterval, w.signalFlush)
		return
	}
	w.timer.Reset(w.opts.UpdateInterval)
}

func (w *Watcher) signalFlush() {
	select {
	case w.flush <- struct{}{}:
	default:
	}
}

func (w *Watcher) onFlush() {
	if w.extracting {
		w.flushWanted = true
		return
	}
	w.startBatch()
}

// startBatch re-extracts the whole root off the loop goroutine. Only one
// extraction runs at a time.
func (w *Watcher) startBatch() {
	w.mu.Lock()
	batch := w.pending
	rescan := w.rescan
	w.pending = nil
	w.rescan = false
	closed := w.closed
	w.mu.Unlock()

	if closed || (len(batch) == 0 && !rescan) {
		return
	}

	batch = dedupe(batch)
	w.extracting = true
	go func() {
		next, err := walker.Extract(w.ctx, w.root, w.opts.Extract)
		w.results <- batchResult{events: batch, tree: next, err: err}
	}()
}

func (w *Watcher) onResult(res batchResult) {
	w.extracting = false

	if res.err != nil {
		if w.ctx.Err() != nil {
			return
		}
		w.fail(fmt.Errorf("re-extract %s: %w", w.root, res.err))
		return
	}

	// an extraction that finished after Close is discarded
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.current.Store(res.tree)
	w.mu.Unlock()

	w.index = indexTypes(res.tree)
	if err := w.syncWatches(res.tree); err != nil {
		w.fail(err)
		return
	}

	for _, raw := range res.events {
		w.emit(Event{Type: raw.typ, Path: raw.path, Tree: res.tree})
	}

	if w.flushWanted {
		w.flushWanted = false
		w.startBatch()
	}
}

func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		logx.Infof("ansa-fs: event queue overflow, rescanning %s", w.root)
		w.enqueue()
		return
	}
	if w.opts.IgnorePermissionErrors && errors.Is(err, fs.ErrPermission) {
		logx.Debugf("ansa-fs: ignoring permission error: %v", err)
		return
	}
	w.fail(err)
}

// fail emits an error event and closes the watcher.
func (w *Watcher) fail(err error) {
	logx.Errorf("ansa-fs: watcher for %s failed: %v", w.root, err)
	w.dispatch(EventError, Event{Type: EventError, Path: w.root, Tree: w.Structure(), Err: err})
	w.Close()
}

// syncWatches subscribes every listed directory of root and drops
// subscriptions for directories that are gone.
func (w *Watcher) syncWatches(root *tree.Node) error {
	want := make(map[string]struct{})
	root.Walk(func(_ string, n *tree.Node) bool {
		// depth-limited directories are not listed and not watched
		if n.IsDir() && n.Children != nil {
			want[n.Path] = struct{}{}
		}
		return true
	})

	for dir := range w.watched {
		if _, ok := want[dir]; !ok {
			w.removeWatch(dir)
		}
	}
	for dir := range want {
		if err := w.addWatch(dir); err != nil {
			return err
		}
	}
	return nil
}

// addWatch subscribes dir. Directories that vanished in the meantime are
// skipped, and so are unreadable ones when permission errors are ignored.
func (w *Watcher) addWatch(dir string) error {
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if w.opts.IgnorePermissionErrors && errors.Is(err, fs.ErrPermission) {
			logx.Debugf("ansa-fs: cannot watch %s: %v", dir, err)
			return nil
		}
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watched[dir] = struct{}{}
	return nil
}

func (w *Watcher) removeWatch(dir string) {
	if _, ok := w.watched[dir]; !ok {
		return
	}
	delete(w.watched, dir)
	// the kernel drops watches on deleted directories by itself
	_ = w.fsw.Remove(dir)
}

func indexTypes(root *tree.Node) map[string]tree.NodeType {
	index := make(map[string]tree.NodeType)
	root.Walk(func(_ string, n *tree.Node) bool {
		index[filepath.Clean(n.Path)] = n.Type
		return true
	})
	return index
}
