package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/barrelwatch/internal/watch"
)

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <folder>...",
		Short: "Watch folders and regenerate their index files",
		Long: `Add persists one or more folders in the settings file. A folder may be
a glob pattern such as 'src/models/*'; every directory it matches is
watched. Paths are taken relative to the current directory and stored
relative to the workspace root.`,
		Example: `  barrelwatch add src/generated
  barrelwatch add 'src/models/*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolders(cmd, args, func(ctx context.Context, reg *watch.Registry, path string) error {
				return reg.Add(ctx, path)
			})
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <folder>...",
		Aliases: []string{"rm"},
		Short:   "Stop watching folders",
		Long: `Remove drops folders from the settings file. The folder must be given
exactly as it was added; removing a folder that is not watched is not an
error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolders(cmd, args, func(ctx context.Context, reg *watch.Registry, path string) error {
				return reg.Remove(ctx, watch.Ref(path))
			})
		},
	}
}

// runFolders applies op to every argument, then reports how many
// directories the updated folder list resolves to.
func runFolders(cmd *cobra.Command, args []string, op func(context.Context, *watch.Registry, string) error) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	reg, err := s.offlineRegistry()
	if err != nil {
		return runtimeError(err)
	}

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return usageError(fmt.Errorf("resolving %q: %w", arg, err))
		}

		if err := op(ctx, reg, path); err != nil {
			return runtimeError(err)
		}
	}

	if !s.cfg.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "watching %d director%s\n", reg.Len(), plural(reg.Len(), "y", "ies"))
	}

	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
