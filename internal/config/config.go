package config

import (
	"errors"
	"fmt"
	"time"
)

// MinSecretLength is the minimum accepted length, in bytes, for the OAuth
// state-signing secret and the JWT signing secret. A shorter secret is a
// startup failure, not a recoverable error.
const MinSecretLength = 32

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	JWT         JWTConfig      `mapstructure:"jwt"`
	OAuth       OAuthConfig    `mapstructure:"oauth"`
	Password    PasswordConfig `mapstructure:"password"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders the postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr renders the host:port pair for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// OAuthProviderConfig is the static, per-deployment configuration of one
// identity provider. Providers are data: adding one means adding an entry
// here, not adding code.
type OAuthProviderConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	ClientID            string   `mapstructure:"client_id"`
	ClientSecret        string   `mapstructure:"client_secret"`
	AuthURL             string   `mapstructure:"auth_url"`
	TokenURL            string   `mapstructure:"token_url"`
	UserInfoURL         string   `mapstructure:"user_info_url"`
	Scopes              []string `mapstructure:"scopes"`
	AllowedRedirectURIs []string `mapstructure:"allowed_redirect_uris"`
}

type OAuthConfig struct {
	StateSecret     string                         `mapstructure:"state_secret"`
	StateTTL        time.Duration                  `mapstructure:"state_ttl"`
	ExchangeTimeout time.Duration                  `mapstructure:"exchange_timeout"`
	Providers       map[string]OAuthProviderConfig `mapstructure:"providers"`
}

type PasswordConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate enforces the startup invariants. A missing or weak signing secret
// must prevent the process from starting.
func (c *Config) Validate() error {
	if len(c.OAuth.StateSecret) < MinSecretLength {
		return fmt.Errorf("oauth.state_secret must be at least %d bytes", MinSecretLength)
	}
	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes", MinSecretLength)
	}
	if c.OAuth.StateTTL <= 0 {
		return errors.New("oauth.state_ttl must be positive")
	}
	for name, p := range c.OAuth.Providers {
		if !p.Enabled {
			continue
		}
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("oauth provider %q is enabled but missing client credentials", name)
		}
		if len(p.AllowedRedirectURIs) == 0 {
			return fmt.Errorf("oauth provider %q is enabled but has no allowed redirect uris", name)
		}
	}
	return nil
}
