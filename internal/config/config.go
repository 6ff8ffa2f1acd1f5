// Package config loads feedsync settings from flags, the environment, .env
// files and the optional ~/.feedsync.yaml, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "FEEDSYNC"

// FileName is the config file looked up in the home and working directories.
const FileName = ".feedsync"

// Keys.
const (
	KeyBaseURL         = "base_url"
	KeyAppMode         = "app_mode"
	KeyAccessToken     = "access_token"
	KeyQueries         = "queries"
	KeyAutoRefresh     = "auto_refresh"
	KeyRefreshInterval = "refresh_interval"
	KeyHTTPTimeout     = "http_timeout"
	KeyListen          = "listen"
	KeyFixtures        = "fixtures"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyLogOutput       = "log_output"
)

// EnvFiles are loaded before the environment is read. Later files do not
// override variables already set.
var EnvFiles = []string{".env.local", ".env"}

// Config holds the resolved settings.
type Config struct {
	BaseURL         string
	AppMode         string
	AccessToken     string
	Queries         []string
	AutoRefresh     bool
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration

	// Listen is the relay address for watch; empty disables the relay.
	Listen string

	// Fixtures is the dev server fixture file; empty uses the built-in set.
	Fixtures string

	LogLevel  string
	LogFormat string
	LogOutput string

	// ConfigFile is the file that was read, if any.
	ConfigFile string
}

// RequiresAuth reports whether refreshes need an authenticated session.
func (c *Config) RequiresAuth() bool {
	return c.AppMode == constants.ModeValyu
}

// New returns a viper instance with defaults and environment binding set
// up. Flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBaseURL, constants.DefaultBaseURL)
	v.SetDefault(KeyAppMode, constants.ModeSelfHosted)
	v.SetDefault(KeyAutoRefresh, true)
	v.SetDefault(KeyRefreshInterval, constants.DefaultRefreshInterval)
	v.SetDefault(KeyHTTPTimeout, constants.DefaultHTTPTimeout)
	return v
}

// Load reads .env files and the config file into v and resolves the
// settings. An explicit file must exist; the default file is optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	LoadEnvFiles(EnvFiles...)

	if err := readConfigFile(v, file); err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:         strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		AppMode:         strings.ToLower(strings.TrimSpace(v.GetString(KeyAppMode))),
		AccessToken:     v.GetString(KeyAccessToken),
		Queries:         list(v.Get(KeyQueries)),
		AutoRefresh:     v.GetBool(KeyAutoRefresh),
		RefreshInterval: v.GetDuration(KeyRefreshInterval),
		HTTPTimeout:     v.GetDuration(KeyHTTPTimeout),
		Listen:          v.GetString(KeyListen),
		Fixtures:        v.GetString(KeyFixtures),
		LogLevel:        stringOr(v, KeyLogLevel, "LOG_LEVEL", "info"),
		LogFormat:       stringOr(v, KeyLogFormat, "LOG_FORMAT", "auto"),
		LogOutput:       stringOr(v, KeyLogOutput, "LOG_OUTPUT", "stderr"),
		ConfigFile:      v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved settings.
func (c *Config) Validate() error {
	switch c.AppMode {
	case constants.ModeValyu, constants.ModeSelfHosted:
	default:
		return errors.NewConfigError(KeyAppMode, "must be valyu or self-hosted",
			errors.NewValidationError(KeyAppMode, c.AppMode, "unknown mode"))
	}
	if c.BaseURL == "" {
		return errors.NewConfigError(KeyBaseURL, "must not be empty", nil)
	}
	if c.RefreshInterval < constants.MinRefreshInterval {
		return errors.NewConfigError(KeyRefreshInterval, "below minimum "+constants.MinRefreshInterval.String(),
			errors.NewValidationError(KeyRefreshInterval, c.RefreshInterval, "too short"))
	}
	if c.HTTPTimeout < 0 {
		return errors.NewConfigError(KeyHTTPTimeout, "must not be negative", nil)
	}
	return nil
}

// LoadEnvFiles loads the given .env files, skipping missing ones.
func LoadEnvFiles(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.WrapParse("yaml", file, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.WrapParse("yaml", filepath.Join("~", FileName+".yaml"), err)
	}
	return nil
}

// stringOr returns the value for key, then the unprefixed variable env,
// then def.
func stringOr(v *viper.Viper, key, env, def string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	if value := os.Getenv(env); value != "" {
		return value
	}
	return def
}

// list accepts YAML lists as well as comma separated strings from flags
// and the environment.
func list(raw any) []string {
	var items []string
	switch x := raw.(type) {
	case string:
		items = []string{x}
	case []string:
		items = x
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	}

	var out []string
	for _, item := range items {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
