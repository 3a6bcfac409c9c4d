package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ansa-fs/internal/config"
	"ansa-fs/internal/walker"
	"ansa-fs/internal/watcher"
)

// runWatch prints one line per event until interrupted or until the watcher
// fails.
func runWatch(cmd *cobra.Command, f *cliFlags, cfg *config.Config, dir string, opts walker.Options) error {
	if f.output != "" {
		return errors.New("--output cannot be combined with --watch")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a bar per re-extraction would interleave with event lines
	opts.Progress = nil

	w, err := watcher.New(ctx, dir, watcher.Options{
		Extract:                opts,
		UpdateInterval:         cfg.Watch.UpdateInterval,
		IgnoreInitial:          cfg.Watch.IgnoreInitial,
		IgnorePermissionErrors: true,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failure error

	w.On(watcher.EventReady, func(ev watcher.Event) {
		fmt.Fprintf(out, "Watching %s (%d files)\n", ev.Path, ev.Tree.FileCount())
	})
	w.On(watcher.EventAll, func(ev watcher.Event) {
		fmt.Fprintf(out, "%s %-9s %s\n", time.Now().Format("15:04:05"), ev.Type, relativeTo(ev.Tree.Path, ev.Path))
	})
	w.On(watcher.EventError, func(ev watcher.Event) {
		failure = ev.Err
	})

	w.Start()
	<-w.Done()
	return failure
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
