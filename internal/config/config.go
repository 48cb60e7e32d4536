package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Wallhaven WallhavenConfig `mapstructure:"wallhaven"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Surfaces  []string        `mapstructure:"surfaces"`
	Rotation  RotationConfig  `mapstructure:"rotation"`
	Apply     ApplyConfig     `mapstructure:"apply"`
	Keyring   KeyringConfig   `mapstructure:"keyring"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // postgres connection string
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type CatalogConfig struct {
	Root     string `mapstructure:"root"`      // directory holding catalog.json
	CacheDir string `mapstructure:"cache_dir"` // image directory; defaults to <root>/images
}

// ImageDir returns the cache directory, defaulting to <root>/images.
func (c *CatalogConfig) ImageDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return strings.TrimRight(c.Root, "/") + "/images"
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	PublicURL string `mapstructure:"public_url"`
}

// SyncConfig holds the defaults for the persisted sync and search settings.
type SyncConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	TriggerTime   string   `mapstructure:"trigger_time"`
	Mode          string   `mapstructure:"mode"`    // daily or favorites
	Mapping       string   `mapstructure:"mapping"` // shared or perSurface
	Limit         int      `mapstructure:"limit"`
	MaxCached     int      `mapstructure:"max_cached"`
	Query         string   `mapstructure:"query"`
	Categories    string   `mapstructure:"categories"`
	Purity        string   `mapstructure:"purity"`
	MinResolution string   `mapstructure:"min_resolution"`
	Ratios        []string `mapstructure:"ratios"`
	Sorting       string   `mapstructure:"sorting"`
	Workers       int      `mapstructure:"workers"` // concurrent downloads per sync
}

type RotationConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Interactive bool `mapstructure:"interactive"` // prompt on the terminal at midnight
}

type ApplyConfig struct {
	Command string   `mapstructure:"command"` // empty: log only
	Args    []string `mapstructure:"args"`
}

type KeyringConfig struct {
	Service string `mapstructure:"service"`
	User    string `mapstructure:"user"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("wallhaven.api_key", "WALLHAVEN_API_KEY")
	v.BindEnv("wallhaven.base_url", "WALLHAVEN_BASE_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Wallhaven.ResolveEnvVars()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/wallfeed.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("wallhaven.base_url", "https://wallhaven.cc/api/v1")
	v.SetDefault("wallhaven.timeout", 30*time.Second)
	v.SetDefault("wallhaven.download_timeout", 60*time.Second)
	v.SetDefault("catalog.root", "./data/catalog")
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.prefix", "wallpapers")
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.trigger_time", "09:00")
	v.SetDefault("sync.mode", "daily")
	v.SetDefault("sync.mapping", "shared")
	v.SetDefault("sync.limit", 24)
	v.SetDefault("sync.max_cached", 200)
	v.SetDefault("sync.categories", "111")
	v.SetDefault("sync.purity", "sfw")
	v.SetDefault("sync.sorting", "date_added")
	v.SetDefault("sync.ratios", []string{})
	v.SetDefault("sync.workers", 4)
	v.SetDefault("surfaces", []string{"default"})
	v.SetDefault("rotation.enabled", true)
	v.SetDefault("rotation.interactive", false)
	v.SetDefault("keyring.service", "wallfeed")
	v.SetDefault("keyring.user", "wallhaven")
}
