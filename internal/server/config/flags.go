package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/bookclub/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP API bind address (e.g., ":8080")
//	-g string   gRPC health bind address
//	-m string   metrics bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   JWT key id
//	-t duration token lifetime (e.g., "24h")
//	-r list     public routes, comma separated
//	-o list     allowed CORS origins, comma separated
//	-l string   log level
//
// Secrets other than -s are not accepted on the command line.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-m", "-d", "-s", "-k", "-t", "-r", "-o", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP API address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret key")
	fs.StringVar(&config.KeyID, "k", config.KeyID, "JWT key id")
	fs.DurationVar(&config.TokenLifetime, "t", config.TokenLifetime, "token lifetime")
	fs.Var(flagx.StringList{Values: &config.PublicRoutes}, "r", "public routes")
	fs.Var(flagx.StringList{Values: &config.AllowedOrigins}, "o", "allowed origins")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
