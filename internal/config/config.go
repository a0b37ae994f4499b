package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
		// Tables lists the entity tables exposed under /api/tables.
		Tables []string `mapstructure:"tables"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Redis struct {
		Addr       string `mapstructure:"addr"`
		Password   string `mapstructure:"password"`
		DB         int    `mapstructure:"db"`
		TTLSeconds int    `mapstructure:"ttl_seconds"`
	} `mapstructure:"redis"`

	Backup struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Prefix    string `mapstructure:"prefix"`
	} `mapstructure:"backup"`

	Business struct {
		Name     string `mapstructure:"name"`
		Timezone string `mapstructure:"timezone"`
		Currency string `mapstructure:"currency"`
	} `mapstructure:"business"`

	Client struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"client"`
}

// DSN is the pgx connection string for the database section.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// CacheTTL is how long table selects stay cached.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// BackupEnabled reports whether a bucket is configured for snapshots.
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != "" && c.Backup.AccessKey != ""
}

// Load reads configs/config.yaml when present, the environment and .env.
func Load() *Config {
	cfg, err := LoadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	return cfg
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("UNIFIELD")
	v.AutomaticEnv()

	// Set sensible defaults (binary works without config file)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("server.tables", DefaultTables)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "unifield")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "unifield-backend")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl_seconds", 60)
	v.SetDefault("backup.region", "auto")
	v.SetDefault("backup.prefix", "snapshots")
	v.SetDefault("business.name", "UniField")
	v.SetDefault("business.timezone", "Africa/Lagos")
	v.SetDefault("business.currency", "NGN")
	v.SetDefault("client.base_url", "http://localhost:8080")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// DefaultTables are the entity tables the gateway serves.
var DefaultTables = []string{
	"retailers", "products", "suppliers", "orders", "returns", "invoices",
	"campaigns", "promotions", "field_agents", "territories", "training_modules",
}

// applyEnv applies the plain environment variables deployments already set.
func applyEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	if cfg.JWT.Secret == "" || cfg.JWT.Secret == "${JWT_SECRET}" {
		cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	if key := os.Getenv("BACKUP_ACCESS_KEY"); key != "" {
		cfg.Backup.AccessKey = key
	}
	if secret := os.Getenv("BACKUP_SECRET_KEY"); secret != "" {
		cfg.Backup.SecretKey = secret
	}

	if base := os.Getenv("UNIFIELD_URL"); base != "" {
		cfg.Client.BaseURL = base
	}
	if token := os.Getenv("UNIFIELD_TOKEN"); token != "" {
		cfg.Client.Token = token
	}
}

// Location resolves the business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		log.Printf("[Config] Unknown timezone %q, using UTC", c.Business.Timezone)
		return time.UTC
	}
	return loc
}
