// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// DefaultDebounce coalesces bursts of writes to the same file.
const DefaultDebounce = 500 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // lower-case, with dot (e.g., ".pdf", ".txt")
	debounce   time.Duration
	stopOnce   sync.Once
}

// NewFSNotifyWatcher creates a new file watcher for course documents.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".txt", ".pdf", ".docx"}
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	if debounce < 0 {
		debounce = 0
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		debounce:   debounce,
	}, nil
}

// Watch starts monitoring the directory and emits events. Writes are
// reported once the file has been quiet for the debounce interval.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)

		done := make(chan struct{})
		defer close(done)
		writes := newDebouncer(w.debounce, done)
		defer writes.stop()

		emit := func(ev ports.FileEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case f := <-writes.fired:
				if !writes.due(f) {
					continue
				}
				if !emit(ports.FileEvent{Path: f.path, Operation: ports.FileModified}) {
					return
				}
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				// Filter by extension
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Has(fsnotify.Create):
					op = ports.FileCreated
				case event.Has(fsnotify.Write):
					if w.debounce > 0 {
						writes.touch(event.Name)
						continue
					}
					op = ports.FileModified
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					writes.cancel(event.Name)
					op = ports.FileDeleted
				default:
					continue
				}

				if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] File watcher: %v", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *FSNotifyWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// debouncer delays a path until it has been quiet for delay. Only the
// goroutine that owns it may call its methods; timers talk back through fired.
type debouncer struct {
	delay   time.Duration
	done    <-chan struct{}
	fired   chan firing
	pending map[string]*pendingWrite
}

type pendingWrite struct{ timer *time.Timer }

// firing identifies which pending write a timer belonged to, so a fire that
// lost the race with a newer write is recognised as stale.
type firing struct {
	path  string
	entry *pendingWrite
}

func newDebouncer(delay time.Duration, done <-chan struct{}) *debouncer {
	return &debouncer{
		delay:   delay,
		done:    done,
		fired:   make(chan firing),
		pending: make(map[string]*pendingWrite),
	}
}

// touch starts or extends the quiet period for path. A timer that already
// fired is replaced rather than reset, so it reports at most once.
func (d *debouncer) touch(path string) {
	if p, ok := d.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(d.delay)
		return
	}
	entry := &pendingWrite{}
	entry.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.fired <- firing{path: path, entry: entry}:
		case <-d.done:
		}
	})
	d.pending[path] = entry
}

// due reports whether f is the latest write for its path and forgets the path
// when it is.
func (d *debouncer) due(f firing) bool {
	if d.pending[f.path] != f.entry {
		return false
	}
	delete(d.pending, f.path)
	return true
}

func (d *debouncer) cancel(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

func (d *debouncer) stop() {
	for path := range d.pending {
		d.cancel(path)
	}
}
