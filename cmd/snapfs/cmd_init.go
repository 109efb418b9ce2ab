package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.dir = args[0]
			}
			b, err := g.initBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			abs, err := filepath.Abs(g.dir)
			if err != nil {
				abs = g.dir
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty %s store in %s\n", g.backend, abs)
			return nil
		},
	}
}
