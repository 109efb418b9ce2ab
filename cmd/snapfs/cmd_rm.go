package main

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newRmCmd(g *globalOptions) *cobra.Command {
	var (
		message   string
		recursive bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files and commit the removal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			removed := false
			next, err := g.update(s, func(cur *vfs.Fs) (*vfs.Fs, error) {
				b := cur.Batch()
				for _, p := range args {
					info, err := cur.Stat(p)
					if err != nil {
						if force && isNotFound(err) {
							continue
						}
						return nil, err
					}
					if info.IsDir() && !recursive {
						return nil, fmt.Errorf("%w: %s (use -r)", vfs.ErrIsADirectory, info.Path)
					}
					if err := b.Remove(p); err != nil {
						return nil, err
					}
				}
				removed = b.Len() > 0
				if !removed {
					return cur, nil
				}
				return b.Commit(message)
			})
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to remove")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", next.Name(), next.CommitHash().Short(), next.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore missing paths")
	return cmd
}
