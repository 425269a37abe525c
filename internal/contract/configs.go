package contract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/huangsam/codegrade/schema"
	"github.com/robfig/cron/v3"
)

// Default values for configuration.
const (
	DefaultAddr             = ":3001"
	DefaultEnv              = "development"
	DefaultGitHubRateBudget = 4500
	DefaultSchedule         = "@hourly"
	DefaultAnalysisTimeout  = 2 * time.Minute
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the validated runtime configuration.
type Config struct {
	Addr       string
	Env        string
	Production bool
	PublicURL  string

	RedisURL string // Please use env var as this may carry a password

	GitHubToken      string // Please use env var as this is plaintext
	GitHubRateBudget int

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	Schedule        string // cron spec for auto-analysis, empty disables
	AnalysisTimeout time.Duration

	LogLevel  slog.Level
	LogFormat string

	Output     schema.OutputMode
	OutputFile string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	Addr             string `mapstructure:"addr"`
	Env              string `mapstructure:"env"`
	PublicURL        string `mapstructure:"public-url"`
	RedisURL         string `mapstructure:"redis-url"`
	GitHubToken      string `mapstructure:"github-token"`
	GitHubRateBudget int    `mapstructure:"github-rate-budget"`
	StoreBackend     string `mapstructure:"store-backend"`
	StoreDBConnect   string `mapstructure:"store-db-connect"`
	Schedule         string `mapstructure:"schedule"`
	AnalysisTimeout  string `mapstructure:"analysis-timeout"`
	LogLevel         string `mapstructure:"log-level"`
	LogFormat        string `mapstructure:"log-format"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
}

// ProcessAndValidate validates input and populates cfg.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateServerInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return validateLogInputs(cfg, input)
}

// validateServerInputs processes the HTTP, GitHub and scheduling settings.
func validateServerInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Addr = input.Addr
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.Env = strings.ToLower(input.Env)
	if cfg.Env == "" {
		cfg.Env = DefaultEnv
	}
	cfg.Production = cfg.Env == "production"

	cfg.PublicURL = strings.TrimSuffix(input.PublicURL, "/")
	if cfg.PublicURL != "" {
		u, err := url.Parse(cfg.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public-url %q. must be an absolute URL", input.PublicURL)
		}
	}

	cfg.RedisURL = input.RedisURL
	if cfg.RedisURL != "" && !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return fmt.Errorf("redis-url must start with redis:// or rediss://")
	}

	cfg.GitHubToken = input.GitHubToken
	cfg.GitHubRateBudget = input.GitHubRateBudget
	if cfg.GitHubRateBudget == 0 {
		cfg.GitHubRateBudget = DefaultGitHubRateBudget
	}
	if cfg.GitHubRateBudget < 0 {
		return fmt.Errorf("github-rate-budget must be positive, got %d", input.GitHubRateBudget)
	}

	cfg.Schedule = strings.TrimSpace(input.Schedule)
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}

	cfg.AnalysisTimeout = DefaultAnalysisTimeout
	if input.AnalysisTimeout != "" {
		d, err := time.ParseDuration(input.AnalysisTimeout)
		if err != nil {
			return fmt.Errorf("invalid analysis-timeout %q: %w", input.AnalysisTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("analysis-timeout must be positive, got %s", d)
		}
		cfg.AnalysisTimeout = d
	}

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output '%s'. must be text or json", input.Output)
	}
	cfg.OutputFile = input.OutputFile
	return nil
}

// validateBackendConfigs validates the durable store configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect)
}

// validateLogInputs parses the log level and format.
func validateLogInputs(cfg *Config, input *ConfigRawInput) error {
	level := input.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log-level %q. must be debug, info, warn or error", input.LogLevel)
	}
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log-format %q. must be text or json", input.LogFormat)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
			return nil
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}
