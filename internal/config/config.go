package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/storecredit/internal/auth/config"
	clientConfig "github.com/iurnickita/storecredit/internal/creditclient/config"
	handlerConfig "github.com/iurnickita/storecredit/internal/handler/config"
	loggerConfig "github.com/iurnickita/storecredit/internal/logger/config"
	serviceConfig "github.com/iurnickita/storecredit/internal/service/config"
	storeConfig "github.com/iurnickita/storecredit/internal/store/config"
)

const envPrefix = "STORECREDIT"

type Config struct {
	Handler handlerConfig.Config `mapstructure:"handler"`
	Service serviceConfig.Config `mapstructure:"service"`
	Store   storeConfig.Config   `mapstructure:"store"`
	Logger  loggerConfig.Config  `mapstructure:"logger"`
	Auth    authConfig.Config    `mapstructure:"auth"`
	Client  clientConfig.Config  `mapstructure:"client"`
}

// NewViper returns a viper instance with defaults and environment binding.
// Flags may be bound onto it before GetConfig.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("handler.server_addr", "localhost:8080")
	v.SetDefault("handler.read_timeout", "10s")
	v.SetDefault("handler.write_timeout", "10s")
	v.SetDefault("handler.shutdown_timeout", "15s")

	v.SetDefault("store.driver", storeConfig.DriverSQLite)
	v.SetDefault("store.dsn", "file:storecredit.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.default_max_credit", 1_000_000)
	v.SetDefault("store.default_warning_threshold", 0.8)

	v.SetDefault("service.statement_limit", 10)
	v.SetDefault("service.max_statement_limit", 100)

	v.SetDefault("logger.log_level", "info")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.ttl", "720h")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout", "10s")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// GetConfig reads config.yml (./config or .) or the explicit path, then
// unmarshals everything v knows. A missing default file is not an error.
func GetConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
