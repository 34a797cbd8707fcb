package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewIssueTokenCommand creates the issue-token command, which prints a
// session token for a user id.
func NewIssueTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <userID>",
		Short: "Issue a session token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			tokens, err := rootOpts.tokens()
			if err != nil {
				return err
			}
			tok, err := tokens.Issue(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}
