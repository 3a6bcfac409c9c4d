package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/zeromicro/go-zero/core/logx"

	"ansa-fs/internal/tree"
	"ansa-fs/internal/walker"
)

type rawEvent struct {
	typ  EventType
	path string
}

// dedupe collapses identical (type, path) pairs to their first occurrence.
// A change to a path added earlier in the same batch is folded into the add.
func dedupe(events []rawEvent) []rawEvent {
	seen := make(map[rawEvent]struct{}, len(events))
	out := make([]rawEvent, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev]; ok {
			continue
		}
		if ev.typ == EventChange {
			if _, added := seen[rawEvent{typ: EventAdd, path: ev.path}]; added {
				continue
			}
		}
		seen[ev] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// translate maps one fsnotify event onto an event type. Chmod, events on
// ignored paths and paths outside the extraction limits yield false.
func (w *Watcher) translate(ev fsnotify.Event) (rawEvent, bool) {
	name := filepath.Clean(ev.Name)
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rawEvent{}, false
	}
	rel = filepath.ToSlash(rel)
	extract := w.opts.Extract

	switch {
	case ev.Has(fsnotify.Create):
		info, ok := w.stat(name)
		if !ok || rel == "." {
			return rawEvent{}, false
		}
		if info.IsDir() {
			if walker.IsIgnored(rel, true, extract) {
				return rawEvent{}, false
			}
			if extract.MaxDepth < 0 || depthOf(rel) < extract.MaxDepth {
				if err := w.addWatch(name); err != nil {
					logx.Errorf("ansa-fs: %v", err)
				}
			}
			return rawEvent{typ: EventAddDir, path: name}, true
		}
		if !extract.ShowFiles || walker.IsIgnored(rel, false, extract) {
			return rawEvent{}, false
		}
		return rawEvent{typ: EventAdd, path: name}, true

	case ev.Has(fsnotify.Write):
		info, ok := w.stat(name)
		if !ok || info.IsDir() || rel == "." {
			return rawEvent{}, false
		}
		if !extract.ShowFiles || walker.IsIgnored(rel, false, extract) {
			return rawEvent{}, false
		}
		return rawEvent{typ: EventChange, path: name}, true

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		_, wasWatched := w.watched[name]
		isDir := w.index[name] == tree.TypeDirectory || wasWatched
		if isDir {
			w.removeWatch(name)
			if rel != "." && walker.IsIgnored(rel, true, extract) {
				return rawEvent{}, false
			}
			return rawEvent{typ: EventUnlinkDir, path: name}, true
		}
		if !extract.ShowFiles || walker.IsIgnored(rel, false, extract) {
			return rawEvent{}, false
		}
		return rawEvent{typ: EventUnlink, path: name}, true
	}

	return rawEvent{}, false
}

// stat resolves a path the way the extractor would: symlinks count only when
// they are followed.
func (w *Watcher) stat(name string) (fs.FileInfo, bool) {
	info, err := os.Lstat(name)
	if err != nil {
		return nil, false
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if !w.opts.Extract.FollowSymlinks {
			return nil, false
		}
		if info, err = os.Stat(name); err != nil {
			return nil, false
		}
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil, false
	}
	return info, true
}

func depthOf(rel string) int {
	return strings.Count(rel, "/") + 1
}
