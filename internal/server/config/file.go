package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/bookclub/internal/flagx"
	"github.com/dmitrijs2005/bookclub/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations accept strings such
// as "24h" as well as integer nanoseconds. Empty fields leave the current
// value untouched.
type FileConfig struct {
	HTTPAddr        string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr        string         `json:"grpc_addr" yaml:"grpc_addr"`
	MetricsAddr     string         `json:"metrics_addr" yaml:"metrics_addr"`
	DatabaseDSN     string         `json:"database_dsn" yaml:"database_dsn"`
	DBMaxOpenConns  int            `json:"db_max_open_conns" yaml:"db_max_open_conns"`
	DBConnLifetime  timex.Duration `json:"db_conn_lifetime" yaml:"db_conn_lifetime"`
	HealthInterval  timex.Duration `json:"health_interval" yaml:"health_interval"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64          `json:"max_body_bytes" yaml:"max_body_bytes"`
	SecretKey       string         `json:"secret_key" yaml:"secret_key"`
	KeyID           string         `json:"kid" yaml:"kid"`
	TokenIssuer     string         `json:"token_issuer" yaml:"token_issuer"`
	TokenLifetime   timex.Duration `json:"token_lifetime" yaml:"token_lifetime"`
	Pepper          string         `json:"pepper" yaml:"pepper"`
	EncryptionKey   string         `json:"encryption_key" yaml:"encryption_key"`
	PublicRoutes    []string       `json:"public_routes" yaml:"public_routes"`
	AllowedOrigins  []string       `json:"allowed_hosts" yaml:"allowed_hosts"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
	LogBackend      string         `json:"log_backend" yaml:"log_backend"`
	IncidentDir     string         `json:"log_dir" yaml:"log_dir"`
	S3AccessKey     string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey     string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket        string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region        string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix        string         `json:"s3_prefix" yaml:"s3_prefix"`
}

// parseFile overlays the file named by -c/-config onto config. Files ending
// in .yaml or .yml are decoded as YAML, anything else as JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.GRPCAddr, fc.GRPCAddr)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	if fc.DBMaxOpenConns > 0 {
		c.DBMaxOpenConns = fc.DBMaxOpenConns
	}
	if fc.DBConnLifetime.Duration > 0 {
		c.DBConnLifetime = fc.DBConnLifetime.Duration
	}
	if fc.HealthInterval.Duration > 0 {
		c.HealthInterval = fc.HealthInterval.Duration
	}
	if fc.ShutdownTimeout.Duration > 0 {
		c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.MaxBodyBytes > 0 {
		c.MaxBodyBytes = fc.MaxBodyBytes
	}
	setString(&c.SecretKey, fc.SecretKey)
	setString(&c.KeyID, fc.KeyID)
	setString(&c.TokenIssuer, fc.TokenIssuer)
	if fc.TokenLifetime.Duration > 0 {
		c.TokenLifetime = fc.TokenLifetime.Duration
	}
	setString(&c.Pepper, fc.Pepper)
	setString(&c.EncryptionKey, fc.EncryptionKey)
	if fc.PublicRoutes != nil {
		c.PublicRoutes = fc.PublicRoutes
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogBackend, fc.LogBackend)
	setString(&c.IncidentDir, fc.IncidentDir)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3Prefix, fc.S3Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
