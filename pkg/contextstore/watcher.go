package contextstore

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cached context when the backing file in the docs
// directory changes, so edited documentation takes effect without a
// restart.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// NewWatcher starts watching docsDir. Events for files matching the
// "<program>-context.txt" pattern invalidate that program's cache entry.
func NewWatcher(store *Store, docsDir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(docsDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		store:   store,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			program, ok := programFromFile(event.Name)
			if !ok {
				continue
			}
			w.logger.Info("context file changed, invalidating cache",
				"program", program,
				"file", event.Name,
				"op", event.Op.String(),
			)
			w.store.Invalidate(program)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("docs watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// programFromFile maps a docs-dir file name back to its program id.
func programFromFile(path string) (string, bool) {
	name := filepath.Base(path)
	program, ok := strings.CutSuffix(name, "-context.txt")
	if !ok || program == "" {
		return "", false
	}
	return program, true
}
