package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Debouncer
// ---------------------------------------------------------------------------

func TestDebouncer_SingleEvent(t *testing.T) {
	var callCount atomic.Int32
	var lastKey atomic.Value

	d := NewDebouncer(50*time.Millisecond, func(key string) {
		callCount.Add(1)
		lastKey.Store(key)
	})
	defer d.Stop()

	d.Trigger("src/generated")

	// Wait for debounce to fire.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
	assert.Equal(t, "src/generated", lastKey.Load())
	assert.Zero(t, d.Pending())
}

func TestDebouncer_MultipleEventsCoalesced(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(100*time.Millisecond, func(_ string) {
		callCount.Add(1)
	})
	defer d.Stop()

	// Fire 10 rapid events for one key; they should coalesce into 1.
	for i := 0; i < 10; i++ {
		d.Trigger("src/generated")
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 1, d.Pending())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	var mu sync.Mutex

	calls := map[string]int{}

	d := NewDebouncer(50*time.Millisecond, func(key string) {
		mu.Lock()
		calls[key]++
		mu.Unlock()
	})
	defer d.Stop()

	d.Trigger("a")
	d.Trigger("b")
	d.Trigger("a")
	assert.Equal(t, 2, d.Pending())

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, calls)
}

func TestDebouncer_Stop(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50*time.Millisecond, func(_ string) {
		callCount.Add(1)
	})

	d.Trigger("a")
	d.Stop()
	d.Trigger("b")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), callCount.Load())
	assert.Zero(t, d.Pending())
}

func TestDebouncer_CallbackPanicIsRecovered(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(20*time.Millisecond, func(key string) {
		callCount.Add(1)

		if key == "bad" {
			panic("boom")
		}
	})
	defer d.Stop()

	d.Trigger("bad")
	time.Sleep(80 * time.Millisecond)

	d.Trigger("good")
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int32(2), callCount.Load())
}

// ---------------------------------------------------------------------------
// DebouncedTrigger
// ---------------------------------------------------------------------------

func TestDebounced_CoalescesPerDirectory(t *testing.T) {
	rec := newRecordingTrigger()

	dt := Debounced(rec, 50*time.Millisecond)
	defer dt.Stop()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dt.Regenerate(ctx, "/ws/a")
		dt.Regenerate(ctx, "/ws/b")
	}

	time.Sleep(150 * time.Millisecond)
	assert.ElementsMatch(t, []string{"/ws/a", "/ws/b"}, rec.drain())
}

func TestDebounced_UsesLatestContext(t *testing.T) {
	type key struct{}

	got := make(chan any, 1)

	dt := Debounced(TriggerFunc(func(ctx context.Context, _ string) {
		got <- ctx.Value(key{})
	}), 30*time.Millisecond)
	defer dt.Stop()

	dt.Regenerate(context.WithValue(context.Background(), key{}, "first"), "/ws/a")
	dt.Regenerate(context.WithValue(context.Background(), key{}, "second"), "/ws/a")

	select {
	case v := <-got:
		assert.Equal(t, "second", v)
	case <-time.After(time.Second):
		t.Fatal("debounced regeneration did not fire")
	}
}

func TestDebounced_ZeroIntervalPassesThrough(t *testing.T) {
	rec := newRecordingTrigger()

	dt := Debounced(rec, 0)
	dt.Regenerate(context.Background(), "/ws/a")
	dt.Regenerate(context.Background(), "/ws/a")
	dt.Stop()

	assert.Equal(t, []string{"/ws/a", "/ws/a"}, rec.drain())
}

func TestDebounced_StopDropsPending(t *testing.T) {
	rec := newRecordingTrigger()

	dt := Debounced(rec, 50*time.Millisecond)
	dt.Regenerate(context.Background(), "/ws/a")
	dt.Regenerate(context.Background(), "/ws/b")
	dt.Stop()

	dt.mu.Lock()
	assert.Empty(t, dt.ctxs, "Stop must release the pending contexts")
	dt.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, rec.drain())
}
