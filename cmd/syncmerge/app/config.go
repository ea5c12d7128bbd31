package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/syncmerge/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	Format  string

	// Config file
	ConfigFile string

	// Reconciliation settings. Zero durations leave the rules file or the
	// engine defaults in effect.
	RulesFile              string
	TimeWindow             time.Duration
	AnalysisTimeout        time.Duration
	PreferLocalOnCollision bool

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (SYNCMERGE_ prefix)
// 3. .env files
// 4. Config file (~/.syncmerge.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file. An empty path
// falls back to SYNCMERGE_CONFIG and then ~/.syncmerge.yaml.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.Set("config", path)
	}
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	loadEnvFiles()

	v.SetEnvPrefix("syncmerge")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".syncmerge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || v.GetString("config") != "" {
			return nil, errors.NewConfigError("app", "config", "cannot read config file", err)
		}
	}

	return &Config{
		Verbose:                v.GetBool("verbose"),
		Quiet:                  v.GetBool("quiet"),
		Format:                 v.GetString("format"),
		ConfigFile:             v.ConfigFileUsed(),
		RulesFile:              v.GetString("rules"),
		TimeWindow:             v.GetDuration("time_window"),
		AnalysisTimeout:        v.GetDuration("analysis_timeout"),
		PreferLocalOnCollision: v.GetBool("prefer_local_on_collision"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", v.GetString("log_level")),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", v.GetString("log_format")),
		LogOutput:              getEnvOrDefault("LOG_OUTPUT", v.GetString("log_output")),
	}, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet bool, format, logLevel, rules string) {
	c.Verbose = verbose
	c.Quiet = quiet
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if rules != "" {
		c.RulesFile = rules
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
