package main

import (
	"fmt"
	"io"
	"time"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
	"github.com/spf13/cobra"
)

func newReflogCmd(g *globalOptions) *cobra.Command {
	var (
		limit int
		tag   bool
	)

	cmd := &cobra.Command{
		Use:   "reflog [name]",
		Short: "Show the update history of a branch or tag",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			dict := s.Branches()
			if tag {
				dict = s.Tags()
			}
			var name string
			switch {
			case len(args) == 1:
				name = args[0]
			case tag:
				return fmt.Errorf("reflog --tag requires a tag name")
			default:
				if name, err = g.branchName(s); err != nil {
					return err
				}
			}

			entries, err := dict.Reflog(name)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			printReflog(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to show")
	cmd.Flags().BoolVar(&tag, "tag", false, "show a tag's history instead of a branch's")
	return cmd
}

func printReflog(out io.Writer, entries []refs.Entry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%s -> %s %-6s %s %s\n",
			shortOrNone(e.Old), shortOrNone(e.New), e.Kind,
			time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05"), e.Message)
	}
}

func shortOrNone(h object.Hash) string {
	if h == "" {
		return "(none)"
	}
	return h.Short()
}
