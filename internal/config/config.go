// Package config loads service configuration from defaults, an optional YAML
// file, PAYMENTS_* environment variables and command flags.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PAYMENTS"

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Crypto      CryptoConfig      `mapstructure:"crypto"`
	Log         LogConfig         `mapstructure:"log"`
	Migrations  MigrationsConfig  `mapstructure:"migrations"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type StripeConfig struct {
	SecretKey       string `mapstructure:"secret_key"`
	DefaultCurrency string `mapstructure:"default_currency"`
	DefaultCountry  string `mapstructure:"default_country"`
}

type AuthConfig struct {
	Mode      string `mapstructure:"mode"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Audience  string `mapstructure:"audience"`
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
}

type CryptoConfig struct {
	// Key is the hex encoding of a 32-byte AES key.
	Key string `mapstructure:"key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

const (
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("metrics.addr", ":8081")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "admin")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "tenant_registry")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.default_currency", "nok")
	v.SetDefault("stripe.default_country", "NO")

	v.SetDefault("auth.mode", AuthModeJWT)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.url", "")
	v.SetDefault("auth.api_key", "")

	v.SetDefault("crypto.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("migrations.path", "file://scripts/migrations")
}

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":    "http.addr",
	"port":         "grpc.port",
	"metrics-addr": "metrics.addr",
	"db-host":      "db.host",
	"db-port":      "db.port",
	"db-user":      "db.user",
	"db-pass":      "db.password",
	"db-name":      "db.name",
	"log-level":    "log.level",
}

// RegisterFlags adds the flags Load understands to cmd.
func RegisterFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "Path to a YAML config file")
	f.String("http-addr", ":8080", "HTTP API listen address")
	f.Int("port", 50051, "Port gRPC server")
	f.String("metrics-addr", ":8081", "Health and metrics listen address")
	f.String("db-host", "localhost", "Database host")
	f.Int("db-port", 5432, "Database port")
	f.String("db-user", "admin", "Database user")
	f.String("db-pass", "", "Database password")
	f.String("db-name", "tenant_registry", "Database name")
	f.String("log-level", "info", "Log level")
}

// Load resolves the configuration. cmd may be nil, in which case flags are ignored.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		flags := cmd.Flags()
		for name, key := range flagKeys {
			if fl := flags.Lookup(name); fl != nil {
				if err := v.BindPFlag(key, fl); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if path, _ := flags.GetString("config"); path != "" {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first setting the server cannot start without.
func (c *Config) Validate() error {
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe.secret_key is required")
	}
	if _, err := c.CryptoKey(); err != nil {
		return err
	}
	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
	case AuthModeRemote:
		if c.Auth.URL == "" {
			return errors.New("auth.url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}
	if c.Idempotency.TTL <= 0 {
		return errors.New("idempotency.ttl must be positive")
	}
	return nil
}

// CryptoKey decodes crypto.key.
func (c *Config) CryptoKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Crypto.Key)
	if err != nil {
		return nil, errors.New("crypto.key must be hex encoded")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto.key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
