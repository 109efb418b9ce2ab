package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newLsCmd(g *globalOptions) *cobra.Command {
	var (
		rev       string
		recursive bool
		long      bool
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
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
			out := cmd.OutOrStdout()
			if recursive {
				return f.Walk(path, func(p string, e vfs.DirEntry) error {
					printEntry(out, p, e, long)
					return nil
				})
			}
			entries, err := f.ListDir(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				printEntry(out, e.Name, e, long)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rev, "rev", "r", "", "branch, tag or commit to list (default: current branch)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "list every entry below the directory")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode and object hash")
	return cmd
}

func printEntry(w io.Writer, name string, e vfs.DirEntry, long bool) {
	if e.Kind.IsDir() {
		name += "/"
	}
	if long {
		fmt.Fprintf(w, "%s %s %s\n", e.Kind.Mode(), e.Hash.Short(), name)
		return
	}
	fmt.Fprintln(w, name)
}
