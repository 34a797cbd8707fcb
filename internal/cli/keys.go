package cli

import (
	"fmt"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/cryptox"
	"github.com/spf13/cobra"
)

// randomHex is a test seam for common.MakeRandHexString.
var randomHex = common.MakeRandHexString

func NewGenSaltCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-salt",
		Short: "Print a random password salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := randomHex(cryptox.SaltSize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func NewGenKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Print a random field encryption key, hex encoded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := randomHex(cryptox.EncryptionKeySize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
