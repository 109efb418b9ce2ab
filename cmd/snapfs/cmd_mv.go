package main

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newMvCmd(g *globalOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "mv <src>... <dst>",
		Short: "Move or rename entries and commit the change",
		Long: `Move or rename entries and commit the change.

With one source, dst is the new name unless it is an existing directory.
With several sources, dst must be a directory; it is created if missing.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, dst := args[:len(args)-1], args[len(args)-1]

			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			var opts []vfs.WriteOption
			if message != "" {
				opts = append(opts, vfs.WithMessage(message))
			}
			next, err := g.update(s, func(cur *vfs.Fs) (*vfs.Fs, error) {
				return cur.Move(srcs, dst, opts...)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", next.Name(), next.CommitHash().Short(), next.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
