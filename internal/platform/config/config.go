package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures process level configuration.
type Config struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins" yaml:"cors_origins"`

	CacheCapacity int           `mapstructure:"cache_capacity" yaml:"cache_capacity"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// Records come from DatabaseURL when set, otherwise from the two CSV files.
	AdoptionCSV string `mapstructure:"adoption_csv" yaml:"adoption_csv"`
	UsageCSV    string `mapstructure:"usage_csv" yaml:"usage_csv"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	// CSVFallback serves the CSV files while the database is failing.
	CSVFallback bool `mapstructure:"csv_fallback" yaml:"csv_fallback"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Load reads configuration from defaults, an optional YAML file and PULSE_*
// environment variables, in increasing precedence. With an empty cfgFile a
// pulse.yaml in the working directory is used when present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("cache_capacity", 256)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("adoption_csv", "data/industry_genai_adoption.csv")
	v.SetDefault("usage_csv", "data/aws_service_usage_by_industry.csv")
	v.SetDefault("database_url", "")
	v.SetDefault("csv_fallback", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pulse")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	if c.DatabaseURL == "" && (c.AdoptionCSV == "" || c.UsageCSV == "") {
		return errors.New("either database_url or both adoption_csv and usage_csv are required")
	}
	return nil
}
