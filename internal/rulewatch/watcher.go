// Package rulewatch watches a single rule file for edits.
//
// The watch is placed on the file's directory rather than the file itself:
// editors that save atomically replace the file by rename, which would
// silently kill an inode-level watch. Rapid write bursts from one save are
// coalesced into a single event.
package rulewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op represents the kind of change seen on the watched file
type Op int

const (
	// FileChanged indicates the file was written or replaced
	FileChanged Op = iota
	// FileRemoved indicates the file was deleted or renamed away
	FileRemoved
)

// String returns a human-readable representation of the operation
func (op Op) String() string {
	switch op {
	case FileChanged:
		return "changed"
	case FileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents one observed change of the watched file
type Event struct {
	Path      string    // Absolute path to the file
	Op        Op        // Kind of change
	Timestamp time.Time // When the event was delivered
}

// DefaultDebounceDelay is the default delay for coalescing rapid writes
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher watches one rule file for changes
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	path    string

	mu            sync.Mutex
	debounceDelay time.Duration
	debounceTimer *time.Timer
	closed        bool
}

// New creates a Watcher for the given rule file. The file must exist when
// the watch starts.
func New(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", absPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:       watcher,
		events:        make(chan Event, 16),
		errors:        make(chan error, 4),
		done:          make(chan struct{}),
		path:          absPath,
		debounceDelay: DefaultDebounceDelay,
	}

	// Watch the containing directory; a watch on the file itself is lost
	// when an editor saves by rename.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	// Start the event processing goroutine
	go w.processEvents()

	return w, nil
}

// processEvents forwards fsnotify events and errors until the watcher closes
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Error channel full, drop the error
			}
		}
	}
}

// handleEvent filters directory events down to the watched file
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return
	}

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		// Plain writes and atomic saves both end here; coalesce the burst
		w.debounce()
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.sendEvent(FileRemoved)
	}
	// Chmod events are ignored
}

// debounce coalesces rapid writes into one change event
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		w.sendEvent(FileChanged)
	})
}

// sendEvent delivers an event unless the watcher is shutting down
func (w *Watcher) sendEvent(op Op) {
	event := Event{
		Path:      w.path,
		Op:        op,
		Timestamp: time.Now(),
	}

	select {
	case w.events <- event:
	case <-w.done:
	default:
		// Events channel full, drop the event
	}
}

// Events returns the channel for receiving file events
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving watch errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Path returns the absolute path of the watched file
func (w *Watcher) Path() string {
	return w.path
}

// SetDebounceDelay sets the delay for coalescing rapid writes.
// This should only be called before events start flowing.
func (w *Watcher) SetDebounceDelay(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDelay = delay
}

// Close stops the watcher and releases resources. Safe to call twice.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()

	// Signal done to stop the event processing goroutine
	close(w.done)

	return w.watcher.Close()
}
