package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Auth struct {
		TenantID     string `mapstructure:"tenant_id"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		StoreScope   string `mapstructure:"store_scope"`
	} `mapstructure:"auth"`

	Store struct {
		Endpoint string `mapstructure:"endpoint"`
		Database string `mapstructure:"database"`
	} `mapstructure:"store"`

	Policy struct {
		// Assignments maps a subject object ID to the containers it may query.
		Assignments map[string][]string `mapstructure:"assignments"`
	} `mapstructure:"policy"`

	Redis struct {
		URL      string        `mapstructure:"url"`
		PoolSize int           `mapstructure:"pool_size"`
		KeyTTL   time.Duration `mapstructure:"key_ttl"`
	} `mapstructure:"redis"`

	Loader struct {
		SeedDir string `mapstructure:"seed_dir"`
		// FileContainers maps a seed file name to its target container.
		FileContainers map[string]string `mapstructure:"file_containers"`
	} `mapstructure:"loader"`

	Observability struct {
		TraceEnabled       bool   `mapstructure:"trace_enabled"`
		TracingEndpointURL string `mapstructure:"tracing_endpoint_url"`
		LogLevel           string `mapstructure:"log_level"`
		LogFormat          string `mapstructure:"log_format"`
		LogSource          bool   `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

func MustLoad() *Config {
	v := viper.New()

	logger := slog.Default()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("OBO_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			logger.Info("No environment-specific config (optional)", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("Failed to unmarshal config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	return &cfg
}

// Validate enforces the startup-time required values. A missing identity or
// store setting is fatal before the first request, never during one.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"auth.tenant_id", c.Auth.TenantID},
		{"auth.client_id", c.Auth.ClientID},
		{"auth.client_secret", c.Auth.ClientSecret},
		{"store.endpoint", c.Store.Endpoint},
		{"store.database", c.Store.Database},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
