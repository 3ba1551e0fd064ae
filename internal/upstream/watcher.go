package upstream

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher drives the always-on "watch" mode: instead of an operator
// running trigger/retrigger by hand, a drop directory is watched for a
// sentinel file and each arrival fires onTrigger.
type Watcher struct {
	fsw *fsnotify.Watcher
	dir string
}

// NewWatcher starts watching dir for filesystem events.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("upstream: new watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("upstream: watch %s: %w", dir, err)
	}
	return &Watcher{fsw: fsw, dir: dir}, nil
}

// Run blocks, invoking onTrigger once per Create/Write event matching
// sentinel until ctx is cancelled or the watcher errors.
func (w *Watcher) Run(ctx context.Context, sentinel string, onTrigger func(path string) error) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if sentinel != "" && filepathBase(ev.Name) != sentinel {
				continue
			}
			if err := onTrigger(ev.Name); err != nil {
				return err
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("upstream: watcher error: %w", err)
		}
	}
}

func filepathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
