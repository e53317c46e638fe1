// Package watch keeps barrel index files current while their folders change.
//
// A [Registry] owns the persisted list of watched folder patterns and one
// filesystem subscription per directory those patterns resolve to. Every
// reconfiguration (Start, Add, Remove) disposes the whole previous
// generation of subscriptions before building the next one from scratch;
// subscriptions are never patched incrementally.
//
// Create, change and delete events on the direct children of a watched
// directory are handled alike: unless the changed file is the generated
// index itself, the directory is handed to the [Trigger] on its own
// goroutine. The registry never waits for a regeneration and never sees
// its outcome.
//
// [FSNotifier] implements the subscriptions on top of fsnotify, and
// [DebouncedTrigger] coalesces bursts of regeneration requests per
// directory.
package watch
