package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docqa/internal/loader"
	"docqa/internal/logger"
)

// DefaultSettle is how long a file must be quiet before it is handed over.
const DefaultSettle = 500 * time.Millisecond

// Watch calls handle for each supported document created or written in
// dir, once the file has stopped changing for settle. Handlers run one at
// a time on the watching goroutine. Watch returns when ctx is done.
func Watch(ctx context.Context, dir string, settle time.Duration, handle func(ctx context.Context, path string)) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("Watching inbox", "path", dir)

	ready := make(chan string)
	done := make(chan struct{})
	defer close(done)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if t, ok := timers[ev.Name]; ok {
				t.Reset(settle)
				continue
			}
			name := ev.Name
			timers[name] = time.AfterFunc(settle, func() {
				select {
				case ready <- name:
				case <-done:
				}
			})
		case name := <-ready:
			delete(timers, name)
			logger.Info("Inbox file ready", "path", name)
			handle(ctx, name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Inbox watcher error", "error", err)
		}
	}
}

// relevant reports whether ev creates or writes a visible, supported
// regular file.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || !loader.Supported(base) {
		return false
	}
	fi, err := os.Stat(ev.Name)
	return err == nil && fi.Mode().IsRegular()
}
