package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/imgfetch/internal/imagefetch"
)

// DefaultImageURL is fetched when no URL is given on the command line.
const DefaultImageURL = "https://cdn.pixabay.com/photo/2022/06/21/21/56/konigssee-7276585_960_720.jpg"

// MaxBatchConcurrency bounds batch.concurrency.
const MaxBatchConcurrency = 256

// Config holds the full application configuration.
type Config struct {
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the image fetch client.
type FetchConfig struct {
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	DefaultURL          string `yaml:"default_url" mapstructure:"default_url"`
	MaxIdleConnsPerHost int    `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
}

// BatchConfig configures concurrent batch fetches.
type BatchConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Format      string  `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the info server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IMGFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.user_agent", imagefetch.DefaultUserAgent)
	v.SetDefault("fetch.default_url", DefaultImageURL)
	v.SetDefault("fetch.max_idle_conns_per_host", 10)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.rate_per_host", 0)
	v.SetDefault("batch.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "fetch", "batch" or "serve". Batch concurrency is capped at
// MaxBatchConcurrency.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fetch":
		// fetch.default_url is checked when it is bound, since an explicit
		// url argument overrides it.
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > MaxBatchConcurrency {
			errs = append(errs, fmt.Sprintf("batch.concurrency must be between 1 and %d", MaxBatchConcurrency))
		}
		if c.Batch.RatePerHost < 0 {
			errs = append(errs, "batch.rate_per_host must be >= 0")
		}
		switch c.Batch.Format {
		case "json", "yaml":
		default:
			errs = append(errs, "batch.format must be json or yaml")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.MaxIdleConnsPerHost < 0 {
		errs = append(errs, "fetch.max_idle_conns_per_host must be >= 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
