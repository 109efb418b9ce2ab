package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBranchCmd(g *globalOptions) *cobra.Command {
	var (
		deleteName string
		switchTo   bool
		showHash   bool
	)

	cmd := &cobra.Command{
		Use:   "branch [name] [rev]",
		Short: "List, create, switch or delete branches",
		Long: `List, create, switch or delete branches.

With a name, points the branch at rev (default: the current branch). With
--switch, also makes it the current branch.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()
			branches := s.Branches()
			out := cmd.OutOrStdout()

			if strings.TrimSpace(deleteName) != "" {
				if len(args) > 0 {
					return fmt.Errorf("branch --delete does not accept positional args")
				}
				if err := branches.Delete(deleteName); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted branch %s\n", deleteName)
				return nil
			}

			if len(args) == 0 {
				current, err := branches.Current()
				if err != nil {
					return err
				}
				all, err := branches.List()
				if err != nil {
					return err
				}
				names, err := branches.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					marker := "  "
					if name == current {
						marker = "* "
					}
					if showHash {
						fmt.Fprintf(out, "%s%s %s\n", marker, all[name].Short(), name)
					} else {
						fmt.Fprintf(out, "%s%s\n", marker, name)
					}
				}
				return nil
			}

			name := args[0]
			rev := ""
			if len(args) == 2 {
				rev = args[1]
			}
			if len(args) == 2 || !switchTo {
				target, err := g.resolveRev(s, rev)
				if err != nil {
					return err
				}
				if target.CommitHash() == "" {
					return fmt.Errorf("cannot create branch %s: %s has no commits", name, target.Name())
				}
				if err := branches.Set(name, target); err != nil {
					return err
				}
			}
			if switchTo {
				if err := branches.SetCurrent(name); err != nil {
					return err
				}
				fmt.Fprintf(out, "Switched to branch %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete the named branch")
	cmd.Flags().BoolVarP(&switchTo, "switch", "s", false, "make the branch current")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show branch target hashes when listing")
	return cmd
}
