package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewEncryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Encrypt a field value for storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := rootOpts.security()
			if err != nil {
				return err
			}
			blob, err := sec.EncryptField(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob)
			return nil
		},
	}
}

func NewDecryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <blob>",
		Short: "Decrypt a stored field value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := rootOpts.security()
			if err != nil {
				return err
			}
			plain, err := sec.DecryptField(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	}
}

// NewIndexCommand prints the lookup index stored next to an encrypted
// email or phone number.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <value>",
		Short: "Print the lookup index of a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := rootOpts.security()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sec.BlindIndex(args[0]))
			return nil
		},
	}
}
