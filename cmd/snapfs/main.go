package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const version = "snapfs 0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "snapfs",
		Short:         "Versioned content-addressed filesystem",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logger = newLogger(cmd.ErrOrStderr(), g.verbose)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&g.dir, "store", "C", ".", "store directory")
	f.StringVar(&g.backend, "backend", backendNative, "storage backend: native, git or bolt")
	f.StringVarP(&g.branch, "branch", "b", "", "branch to operate on (default: current branch)")
	f.StringVar(&g.author, "author", "", `commit author as "Name <email>" (default: from config)`)
	f.CountVarP(&g.verbose, "verbose", "v", "increase log verbosity")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newWriteCmd(g))
	root.AddCommand(newCatCmd(g))
	root.AddCommand(newLsCmd(g))
	root.AddCommand(newRmCmd(g))
	root.AddCommand(newMvCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newUndoCmd(g))
	root.AddCommand(newRedoCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newTagCmd(g))
	root.AddCommand(newReflogCmd(g))
	root.AddCommand(newDiffCmd(g))
	root.AddCommand(newVerifyCmd(g))
	return root
}

// newLogger writes colored logs to w when it is a terminal. verbose 0 shows
// warnings, 1 info, 2 and above debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	ll := &slog.LevelVar{}
	switch {
	case verbose >= 2:
		ll.Set(slog.LevelDebug)
	case verbose == 1:
		ll.Set(slog.LevelInfo)
	default:
		ll.Set(slog.LevelWarn)
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
