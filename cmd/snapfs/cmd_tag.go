package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTagCmd(g *globalOptions) *cobra.Command {
	var (
		deleteTag string
		showHash  bool
	)

	cmd := &cobra.Command{
		Use:   "tag [name] [rev]",
		Short: "List, create or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()
			tags := s.Tags()

			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return fmt.Errorf("tag --delete does not accept positional args")
				}
				return tags.Delete(deleteTag)
			}

			if len(args) == 0 {
				all, err := tags.List()
				if err != nil {
					return err
				}
				names, err := tags.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					if showHash {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", all[name], name)
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
				}
				return nil
			}

			rev := ""
			if len(args) == 2 {
				rev = args[1]
			}
			target, err := g.resolveRev(s, rev)
			if err != nil {
				return err
			}
			if target.CommitHash() == "" {
				return fmt.Errorf("cannot tag %s: no commits", target.Name())
			}
			return tags.Set(args[0], target)
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show tag target hashes when listing")
	return cmd
}
