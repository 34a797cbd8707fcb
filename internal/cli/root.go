// Package cli implements bookclubctl, the operator tool for the bookclub
// API: it generates secrets, hashes passwords, issues session tokens and
// encrypts or decrypts stored fields with the server's keys.
package cli

import (
	"errors"
	"os"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/cryptox"
	"github.com/dmitrijs2005/bookclub/internal/server/auth"
	"github.com/dmitrijs2005/bookclub/internal/server/config"
	"github.com/spf13/cobra"
)

// RootOptions holds the secrets shared by all commands. They default to
// the environment variables the server reads.
type RootOptions struct {
	Pepper        string
	EncryptionKey string
	SecretKey     string
	KeyID         string
	Issuer        string
	Lifetime      time.Duration
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "bookclubctl",
		Short:         "Operator tool for the bookclub API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var defaults config.Config
	defaults.LoadDefaults()

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Pepper, "pepper", os.Getenv("PEPPER"), "password pepper (env PEPPER)")
	flags.StringVar(&opts.EncryptionKey, "encryption-key", os.Getenv("ENCRYPTION_KEY"), "field encryption key (env ENCRYPTION_KEY)")
	flags.StringVar(&opts.SecretKey, "secret-key", os.Getenv("SECRET_KEY"), "token signing secret (env SECRET_KEY)")
	flags.StringVar(&opts.KeyID, "kid", defaults.KeyID, "token key id")
	flags.StringVar(&opts.Issuer, "issuer", defaults.TokenIssuer, "token issuer")
	flags.DurationVar(&opts.Lifetime, "lifetime", defaults.TokenLifetime, "token lifetime")

	cmd.AddCommand(NewGenSaltCommand())
	cmd.AddCommand(NewGenKeyCommand())
	cmd.AddCommand(NewHashPasswordCommand(opts))
	cmd.AddCommand(NewIssueTokenCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewDecryptCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))

	return cmd
}

var (
	errNoPepper = errors.New("pepper is required (--pepper or PEPPER)")
	errNoSecret = errors.New("secret key is required (--secret-key or SECRET_KEY)")
)

// security builds the credential security service from the options.
func (o *RootOptions) security() (*cryptox.SecurityManager, error) {
	if o.Pepper == "" {
		return nil, errNoPepper
	}
	key, err := (&config.Config{EncryptionKey: o.EncryptionKey}).EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	return cryptox.NewSecurityManager(o.Pepper, key)
}

func (o *RootOptions) tokens() (*auth.TokenService, error) {
	if o.SecretKey == "" {
		return nil, errNoSecret
	}
	return auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(o.SecretKey),
		KeyID:    o.KeyID,
		Issuer:   o.Issuer,
		Lifetime: o.Lifetime,
	}), nil
}
