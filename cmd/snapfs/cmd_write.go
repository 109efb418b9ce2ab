package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/vfs"
	"github.com/spf13/cobra"
)

func newWriteCmd(g *globalOptions) *cobra.Command {
	var (
		message    string
		executable bool
		symlink    string
		from       string
	)

	cmd := &cobra.Command{
		Use:   "write <path> [text]",
		Short: "Write a file and commit it",
		Long: `Write a file and commit it.

The content is the text argument, the file named by --from, or standard
input. With --symlink the entry is a symlink to the given target.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			var opts []vfs.WriteOption
			if message != "" {
				opts = append(opts, vfs.WithMessage(message))
			}
			if executable {
				opts = append(opts, vfs.WithKind(object.KindExecutable))
			}

			var data []byte
			if symlink == "" {
				var err error
				switch {
				case len(args) == 2:
					data = []byte(args[1])
				case from != "":
					data, err = os.ReadFile(from)
				default:
					data, err = io.ReadAll(cmd.InOrStdin())
				}
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
			} else if len(args) == 2 || from != "" {
				return fmt.Errorf("write --symlink does not take content")
			}

			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			next, err := g.update(s, func(cur *vfs.Fs) (*vfs.Fs, error) {
				if symlink != "" {
					return cur.WriteSymlink(path, symlink, opts...)
				}
				return cur.Write(path, data, opts...)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", next.Name(), next.CommitHash().Short(), next.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&executable, "executable", "x", false, "mark the file executable")
	cmd.Flags().StringVar(&symlink, "symlink", "", "write a symlink pointing at this target")
	cmd.Flags().StringVarP(&from, "from", "f", "", "read content from a local file")
	return cmd
}
