package cli

import (
	"context"
	"log/slog"

	"github.com/hupe1980/barrelwatch/internal/barrel"
	"github.com/hupe1980/barrelwatch/internal/config"
	"github.com/hupe1980/barrelwatch/internal/logging"
	"github.com/hupe1980/barrelwatch/internal/settings"
	"github.com/hupe1980/barrelwatch/internal/watch"
	"github.com/hupe1980/barrelwatch/internal/workspace"
)

// session bundles the collaborators every command builds from the loaded
// configuration.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	ws     *workspace.Workspace
	store  *settings.FileStore
	gen    *barrel.Generator
}

func newSession(ctx context.Context) (*session, error) {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	root, err := cfg.WorkspaceRoot()
	if err != nil {
		return nil, usageError(err)
	}

	ws, err := workspace.New(root)
	if err != nil {
		return nil, usageError(err)
	}

	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return nil, usageError(err)
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		ws:     ws,
		store:  settings.NewFileStore(settingsPath),
		gen: barrel.New(
			barrel.WithExtension(cfg.Extension),
			barrel.WithIndexStem(cfg.IndexStem),
			barrel.WithLogger(logger),
		),
	}, nil
}

// registry builds a Registry over the session's store and workspace.
func (s *session) registry(notifier watch.Notifier, trigger watch.Trigger) (*watch.Registry, error) {
	return watch.New(watch.Options{
		Store:     s.store,
		Workspace: s.ws,
		Notifier:  notifier,
		Trigger:   trigger,
		IndexName: s.gen.IndexName(),
		Logger:    s.logger,
	})
}

// offlineRegistry builds a Registry whose subscriptions are never opened.
// add and remove use it to persist folders and count what a running watch
// would subscribe to; that process reloads the settings file by itself.
func (s *session) offlineRegistry() (*watch.Registry, error) {
	return s.registry(offlineNotifier{}, s.gen)
}

type offlineNotifier struct{}

func (offlineNotifier) Watch(string, func(watch.Event)) (watch.Handle, error) {
	return offlineHandle{}, nil
}

type offlineHandle struct{}

func (offlineHandle) Close() error { return nil }
