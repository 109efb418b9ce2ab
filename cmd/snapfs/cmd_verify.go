package main

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [rev]",
		Short: "Verify the SSH signature of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := ""
			if len(args) == 1 {
				rev = args[0]
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
			if f.CommitHash() == "" {
				return fmt.Errorf("verify: %s has no commits", f.Name())
			}
			c, err := s.Backend().ReadCommit(f.CommitHash())
			if err != nil {
				return err
			}
			if c.Signature == "" {
				return fmt.Errorf("verify: commit %s is not signed", f.CommitHash().Short())
			}
			if err := verifySSHSignature(c.Signature, object.CommitSigningPayload(c)); err != nil {
				return fmt.Errorf("verify: commit %s: %w", f.CommitHash().Short(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: commit %s has a valid signature\n", f.CommitHash().Short())
			return nil
		},
	}
}
