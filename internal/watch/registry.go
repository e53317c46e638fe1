package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/barrelwatch/internal/logging"
)

// DefaultIndexName is the generated index file name. Changes to a file
// with this name (compared case-insensitively) never trigger regeneration.
const DefaultIndexName = "index.ts"

// FolderStore persists the watched folder patterns.
type FolderStore interface {
	Folders(ctx context.Context) ([]string, error)
	SetFolders(ctx context.Context, folders []string) error
}

// Workspace resolves folder patterns against the workspace root.
type Workspace interface {
	// Rel returns path relative to the workspace root.
	Rel(path string) string
	// Abs resolves a workspace relative path.
	Abs(path string) string
	// Glob expands patterns; directories are eligible matches.
	Glob(ctx context.Context, patterns []string) ([]string, error)
	// IsDir reports false for files and for paths that cannot be stat'ed.
	IsDir(path string) bool
}

// Notifier subscribes to changes of the direct children of a directory.
type Notifier interface {
	Watch(dir string, handler func(Event)) (Handle, error)
}

// Handle is an active subscription. Close releases it and may be called
// any number of times.
type Handle interface {
	Close() error
}

// Trigger regenerates the index of a directory. The registry dispatches
// Regenerate without waiting for it, so reporting failures is up to the
// implementation.
type Trigger interface {
	Regenerate(ctx context.Context, dir string)
}

// TriggerFunc adapts a function to the Trigger interface.
type TriggerFunc func(ctx context.Context, dir string)

// Regenerate calls f(ctx, dir).
func (f TriggerFunc) Regenerate(ctx context.Context, dir string) {
	f(ctx, dir)
}

// FolderRef identifies a folder to stop watching. A nil Path carries no
// value and makes Remove a no-op.
type FolderRef struct {
	Path *string
}

// Ref returns a FolderRef carrying path.
func Ref(path string) FolderRef {
	return FolderRef{Path: &path}
}

// Options configures a Registry.
type Options struct {
	Store     FolderStore
	Workspace Workspace
	Notifier  Notifier
	Trigger   Trigger

	// IndexName is the generated index file name (default "index.ts").
	IndexName string

	// Logger is used for structured logging (default slog.Default()).
	Logger *slog.Logger
}

// Registry maintains one subscription per directory resolved from the
// persisted folder patterns and turns their events into regeneration
// requests.
//
// Reconfiguration calls are serialized: a Start, Add, Remove or Close
// waits for any other one in progress, so concurrent Add calls cannot
// lose each other's pattern updates.
type Registry struct {
	store     FolderStore
	ws        Workspace
	notifier  Notifier
	trigger   Trigger
	indexName string
	logger    *slog.Logger

	mu         sync.Mutex
	handles    map[string]Handle
	generation uint64

	inflight sync.WaitGroup
}

// New creates an idle Registry. No subscriptions exist until Start.
func New(opts Options) (*Registry, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("folder store is required")
	case opts.Workspace == nil:
		return nil, errors.New("workspace is required")
	case opts.Notifier == nil:
		return nil, errors.New("notifier is required")
	case opts.Trigger == nil:
		return nil, errors.New("trigger is required")
	}

	indexName := opts.IndexName
	if indexName == "" {
		indexName = DefaultIndexName
	}

	return &Registry{
		store:     opts.Store,
		ws:        opts.Workspace,
		notifier:  opts.Notifier,
		trigger:   opts.Trigger,
		indexName: indexName,
		logger:    logging.Component(opts.Logger, "registry"),
		handles:   make(map[string]Handle),
	}, nil
}

// Add persists path, relative to the workspace, as a watched folder and
// rebuilds all subscriptions. Adding a folder that is already watched does
// not duplicate it but still rebuilds.
func (r *Registry) Add(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel := r.ws.Rel(path)

	folders, err := r.store.Folders(ctx)
	if err != nil {
		return fmt.Errorf("reading folders: %w", err)
	}

	if err := r.store.SetFolders(ctx, unique(append(slices.Clone(folders), rel))); err != nil {
		return fmt.Errorf("saving folders: %w", err)
	}

	r.logger.Info("folder added", slog.String("folder", rel))

	return r.start(ctx)
}

// Remove drops the folder ref points at from the watched folders and
// rebuilds all subscriptions. A ref without a path is silently ignored.
func (r *Registry) Remove(ctx context.Context, ref FolderRef) error {
	if ref.Path == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rel := r.ws.Rel(*ref.Path)

	folders, err := r.store.Folders(ctx)
	if err != nil {
		return fmt.Errorf("reading folders: %w", err)
	}

	remaining := slices.DeleteFunc(slices.Clone(folders), func(f string) bool { return f == rel })

	if err := r.store.SetFolders(ctx, unique(remaining)); err != nil {
		return fmt.Errorf("saving folders: %w", err)
	}

	r.logger.Info("folder removed", slog.String("folder", rel))

	return r.start(ctx)
}

// Start disposes every current subscription and subscribes to each
// directory the persisted patterns resolve to. With no patterns the
// registry is left idle.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.start(ctx)
}

// Close disposes every subscription and leaves the registry idle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disposeAll()
}

// Wait blocks until all dispatched regenerations have returned. Call it
// after Close, once no further events can arrive.
func (r *Registry) Wait() {
	r.inflight.Wait()
}

// Resolve expands the persisted patterns into the absolute directories
// Start would subscribe to, without touching any subscription.
func (r *Registry) Resolve(ctx context.Context) ([]string, error) {
	folders, err := r.store.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading folders: %w", err)
	}

	if len(folders) == 0 {
		return nil, nil
	}

	return r.resolve(ctx, folders)
}

// Active returns the watched directories in lexical order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	dirs := make([]string, 0, len(r.handles))
	for dir := range r.handles {
		dirs = append(dirs, dir)
	}

	slices.Sort(dirs)

	return dirs
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}

// Generation returns how many times the subscriptions have been rebuilt.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.generation
}

// start rebuilds the subscriptions. r.mu must be held.
func (r *Registry) start(ctx context.Context) error {
	folders, readErr := r.store.Folders(ctx)

	if err := r.disposeAll(); err != nil {
		r.logger.Warn("disposing watchers", slog.String("error", err.Error()))
	}

	r.generation++

	if readErr != nil {
		return fmt.Errorf("reading folders: %w", readErr)
	}

	if len(folders) == 0 {
		r.logger.Debug("no folders to watch", slog.Uint64("generation", r.generation))
		return nil
	}

	dirs, err := r.resolve(ctx, folders)
	if err != nil {
		return err
	}

	// Regenerations outlive the reconfiguration call that set them up.
	dispatchCtx := context.WithoutCancel(ctx)

	for _, dir := range dirs {
		h, err := r.notifier.Watch(dir, func(e Event) {
			r.handle(dispatchCtx, e)
		})
		if err != nil {
			r.logger.Warn("skipping folder",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)

			continue
		}

		r.handles[dir] = h
	}

	r.logger.Info("watching folders",
		slog.Int("patterns", len(folders)),
		slog.Int("dirs", len(r.handles)),
		slog.Uint64("generation", r.generation),
	)

	return nil
}

// resolve keeps the glob matches that are directories, as absolute paths.
func (r *Registry) resolve(ctx context.Context, folders []string) ([]string, error) {
	matches, err := r.ws.Glob(ctx, folders)
	if err != nil {
		return nil, fmt.Errorf("expanding folders: %w", err)
	}

	dirs := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		if !r.ws.IsDir(m) {
			continue
		}

		abs := r.ws.Abs(m)
		if _, dup := seen[abs]; dup {
			continue
		}

		seen[abs] = struct{}{}
		dirs = append(dirs, abs)
	}

	return dirs, nil
}

// disposeAll closes every handle and clears the map. r.mu must be held.
func (r *Registry) disposeAll() error {
	var errs []error

	for dir, h := range r.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing watcher for %s: %w", dir, err))
		}
	}

	clear(r.handles)

	return errors.Join(errs...)
}

// handle is the change handler shared by all subscriptions.
func (r *Registry) handle(ctx context.Context, e Event) {
	if isIndexFile(e.Path, r.indexName) {
		r.logger.Debug("ignoring index change", slog.String("path", e.Path), slog.String("op", e.Op.String()))
		return
	}

	dir := filepath.Dir(e.Path)

	r.logger.Debug("folder changed",
		slog.String("dir", dir),
		slog.String("path", e.Path),
		slog.String("op", e.Op.String()),
	)

	r.inflight.Go(func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("regeneration panicked",
					slog.String("dir", dir),
					slog.Any("error", rec),
				)
			}
		}()

		r.trigger.Regenerate(ctx, dir)
	})
}

func isIndexFile(path, indexName string) bool {
	return strings.EqualFold(filepath.Base(path), indexName)
}

// unique drops repeated entries, keeping the first occurrence.
func unique(folders []string) []string {
	seen := make(map[string]struct{}, len(folders))
	out := make([]string, 0, len(folders))

	for _, f := range folders {
		if _, dup := seen[f]; dup {
			continue
		}

		seen[f] = struct{}{}
		out = append(out, f)
	}

	return out
}
