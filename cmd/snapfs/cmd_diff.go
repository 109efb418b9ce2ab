package main

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

func newDiffCmd(g *globalOptions) *cobra.Command {
	var (
		nameStatus bool
		context    int
	)

	cmd := &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show changes between two snapshots",
		Long: `Show changes between two snapshots.

from defaults to the parent of to, and to defaults to the current branch.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			toRev := ""
			if len(args) == 2 {
				toRev = args[1]
			}
			to, err := g.resolveRev(s, toRev)
			if err != nil {
				return err
			}
			var from *vfs.Fs
			if len(args) >= 1 {
				if from, err = g.resolveRev(s, args[0]); err != nil {
					return err
				}
			} else {
				if from, err = to.Parent(); err != nil {
					return err
				}
			}
			if from == nil {
				// Root commit: compare against the empty tree.
				from = to.Empty()
			}

			changes, err := vfs.Diff(from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if nameStatus {
				printNameStatus(out, changes)
				return nil
			}
			for _, c := range changes {
				if err := printChange(out, s, c, context); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "show only changed paths and their change type")
	cmd.Flags().IntVarP(&context, "unified", "U", 3, "lines of context")
	return cmd
}

func printNameStatus(out io.Writer, changes []vfs.Change) {
	for _, c := range changes {
		code := "M"
		switch c.Type {
		case vfs.Added:
			code = "A"
		case vfs.Deleted:
			code = "D"
		}
		fmt.Fprintf(out, "%s\t%s\n", code, c.Path)
	}
}

func printChange(out io.Writer, s *vfs.Store, c vfs.Change, context int) error {
	a, err := blobText(s, c.Old.Hash)
	if err != nil {
		return err
	}
	b, err := blobText(s, c.New.Hash)
	if err != nil {
		return err
	}

	fromFile, toFile := "a/"+c.Path, "b/"+c.Path
	switch c.Type {
	case vfs.Added:
		fromFile = "/dev/null"
	case vfs.Deleted:
		toFile = "/dev/null"
	}
	fmt.Fprintf(out, "diff %s %s\n", "a/"+c.Path, "b/"+c.Path)
	if c.Type == vfs.Modified && c.Old.Kind != c.New.Kind {
		fmt.Fprintf(out, "old mode %s\nnew mode %s\n", c.Old.Kind.Mode(), c.New.Kind.Mode())
	}
	if isBinary(a) || isBinary(b) {
		fmt.Fprintf(out, "Binary files %s and %s differ\n", fromFile, toFile)
		return nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  context,
	})
	if err != nil {
		return fmt.Errorf("diff %s: %w", c.Path, err)
	}
	_, err = io.WriteString(out, text)
	return err
}

func blobText(s *vfs.Store, h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	return s.ReadObject(h)
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data)
}
