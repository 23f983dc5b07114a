package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// DebugValidate checks every composed schema against the output contract.
	DebugValidate bool `mapstructure:"debug_validate"`
}

type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"` // postgres | memory
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type IngestConfig struct {
	MaxDocumentBytes  int64    `mapstructure:"max_document_bytes"`
	MaxPackageBytes   int64    `mapstructure:"max_package_bytes"`
	MaxZipEntries     int      `mapstructure:"max_zip_entries"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxZipDepth       int      `mapstructure:"max_zip_depth"`
	Workers           int      `mapstructure:"workers"`
}

// CatalogConfig points at optional replacements for the embedded standard
// variable and unit tables.
type CatalogConfig struct {
	StdVarsPath string `mapstructure:"stdvars_path"`
	UnitsPath   string `mapstructure:"units_path"`
}

type CacheConfig struct {
	ParseTTL  time.Duration `mapstructure:"parse_ttl"`
	SchemaTTL time.Duration `mapstructure:"schema_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	defaults := ingest.DefaultLimits()

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.debug_validate", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "devicecatalog")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("ingest.max_document_bytes", defaults.MaxDocumentBytes)
	v.SetDefault("ingest.max_package_bytes", defaults.MaxPackageBytes)
	v.SetDefault("ingest.max_zip_entries", defaults.MaxZipEntries)
	v.SetDefault("ingest.allowed_extensions", defaults.AllowedExtensions)
	v.SetDefault("ingest.max_zip_depth", defaults.MaxZipDepth)
	v.SetDefault("ingest.workers", 4)

	v.SetDefault("cache.parse_ttl", "10m")
	v.SetDefault("cache.schema_ttl", "30m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads the YAML file at path. An empty path uses defaults and the
// environment only. Environment variables use the ODC_ prefix, e.g.
// ODC_DATABASE_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ODC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid database.driver %q (postgres|memory)", c.Database.Driver)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func (c *IngestConfig) Limits() ingest.Limits {
	return ingest.Limits{
		MaxDocumentBytes:  c.MaxDocumentBytes,
		MaxPackageBytes:   c.MaxPackageBytes,
		MaxZipEntries:     c.MaxZipEntries,
		AllowedExtensions: c.AllowedExtensions,
		MaxZipDepth:       c.MaxZipDepth,
	}
}
