package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from a yaml file (config.<APP_ENV>.yaml, or
// CONFIG_PATH when set) and the IDENTITY_* environment, environment winning.
func LoadConfig() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/identity-service")
	}

	viper.SetEnvPrefix("IDENTITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Environment-only configuration is fine; anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Environment = env

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "15s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.auto_migrate", true)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.topic", "identity.events")

	viper.SetDefault("jwt.issuer", "identity-service")
	viper.SetDefault("jwt.audience", "identity-service")
	viper.SetDefault("jwt.access_token_ttl", "30m")

	viper.SetDefault("oauth.state_ttl", "10m")
	viper.SetDefault("oauth.exchange_timeout", "5s")

	viper.SetDefault("password.memory", 65536)
	viper.SetDefault("password.iterations", 3)
	viper.SetDefault("password.parallelism", 2)
	viper.SetDefault("password.salt_length", 16)
	viper.SetDefault("password.key_length", 32)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
