package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events per key into a single callback
// invocation. Only the last event for a key within the configured interval
// triggers the callback; different keys do not delay each other.
type Debouncer struct {
	interval time.Duration
	callback func(key string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that waits for interval of quiet on a
// key before firing callback with that key.
func NewDebouncer(interval time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
		timers:   make(map[string]*time.Timer),
	}
}

// Trigger records an event for key. If no further event for the same key
// arrives within the debounce interval, the callback fires. Triggers after
// Stop are ignored.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t := d.timers[key]; t != nil {
		t.Stop()
	}

	var t *time.Timer

	t = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		stopped := d.stopped
		d.mu.Unlock()

		if stopped {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("debouncer callback panicked",
					slog.String("key", key),
					slog.Any("error", r),
				)
			}
		}()

		d.callback(key)
	})

	d.timers[key] = t
}

// Pending returns the number of keys waiting for their quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.timers)
}

// Stop cancels all pending callbacks and disables the debouncer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true

	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

// DebouncedTrigger wraps a Trigger so that bursts of requests for the same
// directory result in one regeneration after the quiet period. It uses the
// context of the latest request for each directory.
type DebouncedTrigger struct {
	next      Trigger
	debouncer *Debouncer

	mu   sync.Mutex
	ctxs map[string]context.Context
}

// Debounced returns a trigger delaying next by interval per directory.
// A non-positive interval forwards every request immediately.
func Debounced(next Trigger, interval time.Duration) *DebouncedTrigger {
	dt := &DebouncedTrigger{
		next: next,
		ctxs: make(map[string]context.Context),
	}

	if interval > 0 {
		dt.debouncer = NewDebouncer(interval, dt.fire)
	}

	return dt
}

// Regenerate schedules a regeneration of dir.
func (dt *DebouncedTrigger) Regenerate(ctx context.Context, dir string) {
	if dt.debouncer == nil {
		dt.next.Regenerate(ctx, dir)
		return
	}

	dt.mu.Lock()
	dt.ctxs[dir] = ctx
	dt.mu.Unlock()

	dt.debouncer.Trigger(dir)
}

// Stop drops every pending regeneration along with its context.
func (dt *DebouncedTrigger) Stop() {
	if dt.debouncer != nil {
		dt.debouncer.Stop()
	}

	dt.mu.Lock()
	clear(dt.ctxs)
	dt.mu.Unlock()
}

func (dt *DebouncedTrigger) fire(dir string) {
	dt.mu.Lock()
	ctx, ok := dt.ctxs[dir]
	delete(dt.ctxs, dir)
	dt.mu.Unlock()

	if !ok {
		ctx = context.Background()
	}

	dt.next.Regenerate(ctx, dir)
}
