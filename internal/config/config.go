package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Verify  VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Jobs    JobsConfig    `yaml:"jobs" mapstructure:"jobs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig configures the rule engine.
type ScoringConfig struct {
	// RulesPath optionally points at a YAML rule set; empty means the
	// compiled-in defaults.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// VerifyConfig configures the verification adapters.
type VerifyConfig struct {
	LivenessDNSTimeoutSecs  int     `yaml:"liveness_dns_timeout_secs" mapstructure:"liveness_dns_timeout_secs"`
	LivenessHTTPTimeoutSecs int     `yaml:"liveness_http_timeout_secs" mapstructure:"liveness_http_timeout_secs"`
	CodeHostBaseURL         string  `yaml:"codehost_base_url" mapstructure:"codehost_base_url"`
	CodeHostRPS             float64 `yaml:"codehost_rps" mapstructure:"codehost_rps"`
}

// EnrichConfig configures company and phone enrichment.
type EnrichConfig struct {
	OpenCorpBaseURL  string `yaml:"opencorp_base_url" mapstructure:"opencorp_base_url"`
	OpenCorpAPIKey   string `yaml:"opencorp_api_key" mapstructure:"opencorp_api_key"`
	NumLookupBaseURL string `yaml:"numlookup_base_url" mapstructure:"numlookup_base_url"`
	NumLookupAPIKey  string `yaml:"numlookup_api_key" mapstructure:"numlookup_api_key"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
}

// JobsConfig configures batch job execution.
type JobsConfig struct {
	MaxConcurrent     int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ProgressGraceSecs int    `yaml:"progress_grace_secs" mapstructure:"progress_grace_secs"`
	OutputDir         string `yaml:"output_dir" mapstructure:"output_dir"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALESFILTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "salesfilter.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("verify.liveness_dns_timeout_secs", 2)
	v.SetDefault("verify.liveness_http_timeout_secs", 3)
	v.SetDefault("verify.codehost_rps", 1)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.cache_ttl_hours", 24)
	v.SetDefault("jobs.max_concurrent", 2)
	v.SetDefault("jobs.progress_grace_secs", 300)
	v.SetDefault("jobs.output_dir", "outputs")

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

// Validate checks configuration required by the given run mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "process", "score":
		// offline modes have no extra requirements
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Jobs.MaxConcurrent < 1 || c.Jobs.MaxConcurrent > 50 {
		errs = append(errs, "jobs.max_concurrent must be between 1 and 50")
	}
	if c.Jobs.ProgressGraceSecs < 0 {
		errs = append(errs, "jobs.progress_grace_secs must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
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
