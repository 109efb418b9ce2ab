package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newLogCmd(g *globalOptions) *cobra.Command {
	var (
		oneline bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}

			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := g.resolveRev(s, rev)
			if err != nil {
				return err
			}
			history, err := f.Log(limit)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
				return nil
			}
			printLog(cmd.OutOrStdout(), history, oneline)
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	return cmd
}

func printLog(out io.Writer, history []*vfs.Fs, oneline bool) {
	for i, f := range history {
		decoration := ""
		if i == 0 && f.RefName() != "" {
			decoration = " (" + f.Name() + ")"
		}
		if oneline {
			fmt.Fprintf(out, "%s%s %s\n", f.CommitHash().Short(), decoration, f.Message())
			continue
		}
		fmt.Fprintf(out, "commit %s%s\n", f.CommitHash(), decoration)
		fmt.Fprintf(out, "Author: %s\n", f.Author())
		fmt.Fprintf(out, "Date:   %s\n", f.Time().Format("2006-01-02 15:04:05"))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "    %s\n", f.Message())
		fmt.Fprintln(out)
	}
}
