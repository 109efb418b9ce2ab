package main

import (
	"fmt"
	"strconv"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newUndoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [n]",
		Short: "Move the branch back n commits (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryStep(cmd, g, args, (*vfs.Fs).Undo)
		},
	}
}

func newRedoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "redo [n]",
		Short: "Reapply the last n undone commits (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryStep(cmd, g, args, (*vfs.Fs).Redo)
		},
	}
}

func runHistoryStep(cmd *cobra.Command, g *globalOptions, args []string, step func(*vfs.Fs, int) (*vfs.Fs, error)) error {
	n := 1
	if len(args) == 1 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
			return fmt.Errorf("step count must be a positive integer, got %q", args[0])
		}
	}

	s, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()

	cur, err := g.current(s)
	if err != nil {
		return err
	}
	next, err := step(cur, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now at %s %s\n", next.Name(), next.CommitHash().Short(), next.Message())
	return nil
}
