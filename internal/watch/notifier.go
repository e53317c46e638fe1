package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change reported for a directory entry.
type Op uint8

// Change kinds.
const (
	Created Op = iota + 1
	Changed
	Deleted
)

// String returns the lower-case name of the change kind.
func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Event reports a change of one direct child of a watched directory.
type Event struct {
	Path string
	Op   Op
}

// FSNotifier implements [Notifier] with one fsnotify watcher per directory.
// fsnotify watches are not recursive, so only direct children are reported.
type FSNotifier struct {
	logger *slog.Logger
}

// NewFSNotifier creates a notifier that logs watcher errors to logger.
// A nil logger falls back to slog.Default().
func NewFSNotifier(logger *slog.Logger) *FSNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &FSNotifier{logger: logger}
}

// Watch subscribes handler to the direct children of dir. Events are
// delivered sequentially from a single goroutine per subscription.
func (n *FSNotifier) Watch(dir string, handler func(Event)) (Handle, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	h := &fsHandle{
		fw:      fw,
		dir:     filepath.Clean(dir),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go h.loop(handler, n.logger)

	return h, nil
}

// fsHandle owns one fsnotify watcher and its event loop.
type fsHandle struct {
	fw      *fsnotify.Watcher
	dir     string
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	err     error
}

// Close stops the event loop and releases the OS watch. It returns once no
// further events can be delivered. Subsequent calls return the first result.
func (h *fsHandle) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.err = h.fw.Close()
		<-h.stopped
	})

	return h.err
}

func (h *fsHandle) loop(handler func(Event), logger *slog.Logger) {
	defer close(h.stopped)

	for {
		select {
		case <-h.done:
			return

		case event, ok := <-h.fw.Events:
			if !ok {
				return
			}

			if e, relevant := translate(h.dir, event); relevant {
				handler(e)
			}

		case watchErr, ok := <-h.fw.Errors:
			if !ok {
				return
			}

			logger.Error("watcher error",
				slog.String("dir", h.dir),
				slog.String("error", watchErr.Error()),
			)
		}
	}
}

// translate maps an fsnotify event to an Event. Chmod-only events and
// events about the watched directory itself are not relevant.
func translate(dir string, event fsnotify.Event) (Event, bool) {
	name := filepath.Clean(event.Name)
	if name == dir {
		return Event{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return Event{Path: name, Op: Created}, true
	case event.Has(fsnotify.Write):
		return Event{Path: name, Op: Changed}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Path: name, Op: Deleted}, true
	default:
		return Event{}, false
	}
}
