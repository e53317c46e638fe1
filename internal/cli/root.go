// Package cli implements the cobra command tree for barrelwatch.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/barrelwatch/internal/config"
	"github.com/hupe1980/barrelwatch/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// usageError marks err as a usage or configuration problem (exit code 2).
func usageError(err error) error {
	return &ExitError{Code: 2, Err: err}
}

// runtimeError marks err as a failure while doing the work (exit code 1).
func runtimeError(err error) error {
	return &ExitError{Code: 1, Err: err}
}

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "barrelwatch",
		Short: "Keep index.ts barrel files in sync with their folders",
		Long: `barrelwatch watches the folders of a TypeScript workspace and
regenerates their index.ts barrel files whenever a module is added,
changed or removed.

Watched folders are glob patterns relative to the workspace root. They are
stored in the workspace settings file (default .barrelwatch/settings.yaml)
and managed with the add and remove commands. A running watch picks up
changes to the settings file without a restart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return usageError(err)
			}

			logger := logging.Setup(cfg, os.Stderr)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("workspace", cfg.Workspace),
				slog.String("settings", cfg.Settings),
			)

			return nil
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .barrelwatch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.StringP("workspace", "w", ".", "workspace root folder patterns are relative to")
	pf.String("settings", config.DefaultSettingsFile, "settings file holding the watched folders")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.AddCommand(
		newVersionCommand(),
		newWatchCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newListCommand(),
		newGenerateCommand(),
		newCompletionCommand(),
	)

	return cmd
}
