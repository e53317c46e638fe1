package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/barrelwatch/internal/output"
)

func newGenerateCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate [dir]...",
		Short: "Regenerate index files once",
		Long: `Generate rewrites the index file of each given directory. Without
arguments it regenerates every directory the watched folders resolve to.

An index that is already up to date is not touched. A directory without
exportable modules keeps its existing index, if any.

Use --dry-run to print a unified diff of what would change instead,
followed by a one-line summary per file on stderr.`,
		Example: `  barrelwatch generate src/generated
  barrelwatch generate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx)
			if err != nil {
				return err
			}

			dirs := make([]string, 0, len(args))

			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return usageError(fmt.Errorf("resolving %q: %w", arg, err))
				}

				dirs = append(dirs, abs)
			}

			if len(args) == 0 {
				reg, err := s.offlineRegistry()
				if err != nil {
					return runtimeError(err)
				}

				if dirs, err = reg.Resolve(ctx); err != nil {
					return runtimeError(err)
				}
			}

			out := cmd.OutOrStdout()

			var summaries []string

			for _, dir := range dirs {
				label := s.ws.Rel(s.gen.IndexPath(dir))

				if dryRun {
					result, err := s.gen.Diff(dir, label)
					if err != nil {
						return runtimeError(err)
					}

					if err := output.WriteDiff(out, result, !s.cfg.NoColor); err != nil {
						return err
					}

					summaries = append(summaries, result.Summary())

					continue
				}

				res, err := s.gen.Write(ctx, dir)
				if err != nil {
					return runtimeError(err)
				}

				if s.cfg.Quiet {
					continue
				}

				switch {
				case res.Written:
					fmt.Fprintf(out, "wrote %s (%d exports)\n", label, res.Exports)
				case res.Exports == 0:
					fmt.Fprintf(out, "skipped %s (nothing to export)\n", label)
				default:
					fmt.Fprintf(out, "%s is up to date\n", label)
				}
			}

			if dryRun && !s.cfg.Quiet {
				for _, line := range summaries {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print a diff instead of writing")

	return cmd
}
