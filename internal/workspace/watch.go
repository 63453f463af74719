package workspace

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch watches registry.json for external edits (e.g. an operator CLI
// invocation running concurrently with the daemon) and invokes onChange
// whenever the file is written, so an in-memory cache layered on top of
// Registry can invalidate itself. Blocks until ctx is canceled.
func (r *Registry) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(r.dir); err != nil {
		return err
	}

	log := slog.With("component", "workspace.watch")
	target := r.path()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		}
	}
}
