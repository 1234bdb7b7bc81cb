// Package fswatch turns filesystem changes under a project directory into
// trigger events. It watches recursively, skips VCS, dependency and build
// directories and editor scratch files, and debounces the bursts of writes
// editors produce for a single save.
package fswatch

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/trigger"
)

// DebounceInterval suppresses repeated events for the same path.
const DebounceInterval = 50 * time.Millisecond

// Directories to ignore when watching.
var ignoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	"build":        true,
	".internal":    true,
	"dist":         true,
}

// File suffixes editors leave behind while saving.
var ignoreSuffixes = []string{
	".DS_Store",
	".swp",
	".swx",
	".tmp",
	"~",
}

type Handler interface {
	Handle(event domain.TriggerEvent) trigger.Decision
}

type Watcher struct {
	fw         *fsnotify.Watcher
	handler    Handler
	extensions map[string]bool // empty = all files
	done       chan struct{}
	stopped    bool
	mu         sync.Mutex

	dmu      sync.Mutex
	lastSeen map[string]time.Time
}

// New creates a watcher. extensions such as ".lua" or ".script" restrict
// which files produce events; none means every file does.
func New(handler Handler, extensions []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Watcher{
		fw:         fw,
		handler:    handler,
		extensions: exts,
		done:       make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
	}, nil
}

// Watch starts monitoring root recursively and returns once the initial
// directories are registered.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if ignoreDirs[info.Name()] && path != absRoot {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("fswatch: watching %s", absRoot)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("fswatch: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !ignoreDirs[info.Name()] {
				if err := w.fw.Add(path); err != nil {
					log.Printf("fswatch: add %s: %v", path, err)
				}
			}
			return
		}
	}

	if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		return
	}
	if !w.relevant(path) || w.debounced(path) {
		return
	}

	w.handler.Handle(domain.NewTriggerEvent(domain.TriggerSourceChange, path))
}

func (w *Watcher) debounced(path string) bool {
	w.dmu.Lock()
	defer w.dmu.Unlock()

	now := time.Now()
	if last, ok := w.lastSeen[path]; ok && now.Sub(last) < DebounceInterval {
		return true
	}
	w.lastSeen[path] = now

	if len(w.lastSeen) > 1024 {
		for p, t := range w.lastSeen {
			if now.Sub(t) >= DebounceInterval {
				delete(w.lastSeen, p)
			}
		}
	}
	return false
}

func (w *Watcher) relevant(path string) bool {
	if shouldIgnorePath(path) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

func shouldIgnorePath(path string) bool {
	base := filepath.Base(path)
	for _, s := range ignoreSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	// emacs lock files
	if strings.HasPrefix(base, ".#") {
		return true
	}
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}
