package main

import (
	"github.com/spf13/cobra"
)

func newCatCmd(g *globalOptions) *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "cat <path>...",
		Short: "Print file contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			for _, p := range args {
				data, err := f.Read(p)
				if err != nil {
					return err
				}
				if _, err := out.Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rev, "rev", "r", "", "branch, tag or commit to read (default: current branch)")
	return cmd
}
