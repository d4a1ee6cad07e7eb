// Package librarywatch passively observes the managed music library tree
// for out-of-band changes (a file dropped in or deleted by something other
// than the job engine). It never touches a Job — it only logs — so it
// carries no coupling to store/pipeline/worker.
package librarywatch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"truetrack/internal/probe"
)

// Watcher recursively watches a root directory and logs audio file
// arrivals/removals, grounded on the teacher's startFileWatcher/watchFiles.
type Watcher struct {
	root    string
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
}

// New builds a Watcher rooted at root. Call Start to begin watching.
func New(root string, logger *logrus.Logger) *Watcher {
	return &Watcher{root: root, logger: logger}
}

// Start begins watching root and its subdirectories in a background
// goroutine. The returned error is only from the initial setup; runtime
// errors are logged, not returned.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	if err := w.addDirectoryToWatcher(w.root); err != nil {
		fw.Close()
		return err
	}

	go w.run()
	w.logger.WithField("root", w.root).Info("library watcher started")
	return nil
}

// Stop closes the underlying watcher, terminating the run goroutine.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("library watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Create) && probe.IsAudioFile(event.Name):
		go func(path string) {
			time.Sleep(500 * time.Millisecond)
			w.logger.WithField("path", path).Info("audio file appeared in library")
		}(event.Name)

	case event.Has(fsnotify.Remove) && probe.IsAudioFile(event.Name):
		w.logger.WithField("path", event.Name).Info("audio file removed from library")

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watcher.Add(event.Name)
			w.logger.WithField("path", event.Name).Debug("watching new library subdirectory")
		}
	}
}
