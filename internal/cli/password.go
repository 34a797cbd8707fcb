package cli

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/spf13/cobra"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errPasswordPolicy   = errors.New("password needs at least 6 characters, 2 digits and mixed case")
)

type hashPasswordOptions struct {
	*RootOptions
	Stdin bool
	Salt  string
}

// NewHashPasswordCommand creates the hash-password command. It prints the
// salt and the hash to store for a user.
func NewHashPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &hashPasswordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password the way the API stores it",
		Long: `Hash a password the way the API stores it.

The password is read from the terminal without echo and must be entered
twice. With --stdin a single line is read from standard input instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return hashPassword(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "read the password from standard input")
	cmd.Flags().StringVar(&opts.Salt, "salt", "", "use this salt instead of a random one")

	return cmd
}

func hashPassword(cmd *cobra.Command, opts *hashPasswordOptions) error {
	sec, err := opts.security()
	if err != nil {
		return err
	}

	password, err := readNewPassword(cmd, opts.Stdin)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if !sec.VerifyPasswordPolicy(string(password)) {
		return errPasswordPolicy
	}

	salt := opts.Salt
	if salt == "" {
		if salt, err = sec.GenerateSalt(); err != nil {
			return err
		}
	}

	hash, err := sec.HashPassword(string(password), salt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "salt: %s\n", salt)
	fmt.Fprintf(out, "hash: %s\n", hash)
	return nil
}

func readNewPassword(cmd *cobra.Command, stdin bool) ([]byte, error) {
	if stdin {
		line, err := GetSimpleText(bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return []byte(line), nil
	}

	first, err := GetPassword(cmd.ErrOrStderr(), "Enter password: ")
	if err != nil {
		return nil, err
	}
	second, err := GetPassword(cmd.ErrOrStderr(), "Repeat password: ")
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		common.WipeByteArray(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}
