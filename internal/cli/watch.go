package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/barrelwatch/internal/config"
	"github.com/hupe1980/barrelwatch/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch folders and keep their index files up to date",
		Long: `Watch subscribes to every directory the watched folders resolve to and
regenerates a directory's index file whenever one of its entries is
created, changed or deleted. Changes to the index file itself are
ignored.

Changes are debounced per directory. The settings file is watched as well,
so folders added or removed from another shell take effect immediately.

Watch runs until interrupted (SIGINT or SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd)
		},
	}

	cmd.Flags().Duration("debounce", config.DefaultDebounce, "quiet period per directory before regenerating")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trigger := watch.Debounced(s.gen, s.cfg.Debounce)
	notifier := watch.NewFSNotifier(s.logger)

	reg, err := s.registry(notifier, trigger)
	if err != nil {
		return runtimeError(err)
	}

	if err := reg.Start(ctx); err != nil {
		return runtimeError(err)
	}

	reload := watch.NewDebouncer(s.cfg.Debounce, func(string) {
		if err := reg.Start(ctx); err != nil {
			s.logger.Error("reloading settings", slog.String("error", err.Error()))
		}
	})

	settingsWatch, err := watchSettings(notifier, s.store.Path(), reload)
	if err != nil {
		s.logger.Warn("settings changes will not be picked up", slog.String("error", err.Error()))
	}

	if !s.cfg.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "watching %d director%s (debounce=%s), press Ctrl+C to stop\n",
			reg.Len(), plural(reg.Len(), "y", "ies"), s.cfg.Debounce)
	}

	<-ctx.Done()

	s.logger.Debug("stopping watch", slog.Int("pendingReloads", reload.Pending()))

	// Stop the event sources before the consumers they feed.
	if settingsWatch != nil {
		_ = settingsWatch.Close()
	}

	reload.Stop()

	if err := reg.Close(); err != nil {
		s.logger.Warn("closing watchers", slog.String("error", err.Error()))
	}

	reg.Wait()
	trigger.Stop()

	s.logger.Debug("watch stopped")

	return nil
}

// watchSettings reports writes to the settings file to reload. The parent
// directory is watched since the file is replaced by rename on every save.
func watchSettings(n watch.Notifier, path string, reload *watch.Debouncer) (watch.Handle, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	name := filepath.Base(path)

	return n.Watch(dir, func(e watch.Event) {
		if filepath.Base(e.Path) == name {
			reload.Trigger(path)
		}
	})
}

