package config

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/flagx"
)

// parseEnv overlays environment variables onto config. Unset variables
// leave the current value untouched; unparsable numbers are ignored.
//
//	HTTP_ADDR, GRPC_ADDR, METRICS_ADDR
//	DATABASE_DSN
//	SECRET_KEY, KID, TOKEN_LIFETIME
//	PEPPER, ENCRYPTION_KEY
//	PUBLIC_ROUTES, ALLOWED_HOSTS (comma separated)
//	LOG_LEVEL, LOG_BACKEND, LOG_DIR
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(name); ok {
			*dst = flagx.SplitList(v)
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("GRPC_ADDR", &config.GRPCAddr)
	str("METRICS_ADDR", &config.MetricsAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("KID", &config.KeyID)
	str("PEPPER", &config.Pepper)
	str("ENCRYPTION_KEY", &config.EncryptionKey)
	str("LOG_LEVEL", &config.LogLevel)
	str("LOG_BACKEND", &config.LogBackend)
	str("LOG_DIR", &config.IncidentDir)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	list("PUBLIC_ROUTES", &config.PublicRoutes)
	list("ALLOWED_HOSTS", &config.AllowedOrigins)

	if v, ok := lookup("TOKEN_LIFETIME"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenLifetime = d
		}
	}
	if v, ok := lookup("DB_MAX_OPEN_CONNS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.DBMaxOpenConns = n
		}
	}
}
