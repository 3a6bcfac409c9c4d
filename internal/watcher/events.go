package watcher

import "ansa-fs/internal/tree"

// EventType names what happened to a path, or a lifecycle signal.
type EventType string

const (
	EventAdd       EventType = "add"
	EventChange    EventType = "change"
	EventUnlink    EventType = "unlink"
	EventAddDir    EventType = "addDir"
	EventUnlinkDir EventType = "unlinkDir"
	// EventAll receives every add, change, unlink, addDir and unlinkDir
	// event after its specific handlers.
	EventAll   EventType = "all"
	EventReady EventType = "ready"
	EventError EventType = "error"
)

// Event is delivered to handlers. For EventAll handlers Type holds the
// specific event type.
type Event struct {
	Type EventType
	// Path is the absolute path that changed, or the watched root for
	// ready and error events.
	Path string
	// Tree is the structure after the batch containing this event settled.
	Tree *tree.Node
	Err  error
}

type Handler func(Event)

// Subscription identifies a registered handler for Off.
type Subscription uint64

type subscriber struct {
	id      Subscription
	handler Handler
}

// On registers h for event. A ready handler registered after the watcher
// became ready is called immediately on the caller's goroutine.
func (w *Watcher) On(event EventType, h Handler) Subscription {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.handlers[event] = append(w.handlers[event], subscriber{id: id, handler: h})
	replayReady := event == EventReady && w.ready && !w.closed
	w.mu.Unlock()

	if replayReady {
		h(Event{Type: EventReady, Path: w.root, Tree: w.Structure()})
	}
	return id
}

// Off removes the handler registered under sub.
func (w *Watcher) Off(event EventType, sub Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := w.handlers[event]
	for i, s := range subs {
		if s.id == sub {
			w.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// dispatch calls the handlers registered for event. The closed flag is checked
// before each call, so a handler that closes the watcher stops delivery.
// Handlers run without the lock held: a Close from another goroutine does
// not wait for a call that already passed the check. Once Done is closed no
// handler runs.
func (w *Watcher) dispatch(event EventType, ev Event) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	subs := append([]subscriber(nil), w.handlers[event]...)
	w.mu.Unlock()

	for _, s := range subs {
		if w.isClosed() {
			return
		}
		s.handler(ev)
	}
}

// emit delivers a change event to its specific handlers and then to all.
func (w *Watcher) emit(ev Event) {
	w.dispatch(ev.Type, ev)
	w.dispatch(EventAll, ev)
}

func (w *Watcher) emitReady() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.ready = true
	subs := append([]subscriber(nil), w.handlers[EventReady]...)
	w.mu.Unlock()

	ev := Event{Type: EventReady, Path: w.root, Tree: w.Structure()}
	for _, s := range subs {
		if w.isClosed() {
			return
		}
		s.handler(ev)
	}
}

// emitInitial reports every node of the initial structure as added.
func (w *Watcher) emitInitial() {
	root := w.Structure()
	root.Walk(func(rel string, n *tree.Node) bool {
		if rel == "" {
			return true
		}
		typ := EventAdd
		if n.IsDir() {
			typ = EventAddDir
		}
		w.emit(Event{Type: typ, Path: n.Path, Tree: root})
		return !w.isClosed()
	})
}
