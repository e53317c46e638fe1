package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var resolved bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List watched folders",
		Long: `List prints the folders stored in the settings file. With --resolved it
prints the directories those folders currently expand to instead, which
is what a watch would subscribe to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx)
			if err != nil {
				return err
			}

			var entries []string

			if resolved {
				reg, err := s.offlineRegistry()
				if err != nil {
					return runtimeError(err)
				}

				dirs, err := reg.Resolve(ctx)
				if err != nil {
					return runtimeError(err)
				}

				for _, dir := range dirs {
					entries = append(entries, s.ws.Rel(dir))
				}
			} else {
				entries, err = s.store.Folders(ctx)
				if err != nil {
					return runtimeError(err)
				}
			}

			out := cmd.OutOrStdout()

			if len(entries) == 0 && !s.cfg.Quiet {
				_, err := fmt.Fprintln(cmd.ErrOrStderr(), "no folders are watched")
				return err
			}

			for _, e := range entries {
				if _, err := fmt.Fprintln(out, e); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&resolved, "resolved", false, "print the directories the folders expand to")

	return cmd
}
