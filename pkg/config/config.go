package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
)

const (
	DefaultJWKSPath           = ".well-known/jwks.json"
	DefaultTimeout            = 10 * time.Second
	DefaultMinRefreshInterval = 5 * time.Minute
	DefaultTimeToLive         = 24 * time.Hour
	DefaultLogLevel           = "info"
)

// Config holds the settings of the JWKS command line client.
type Config struct {
	// BaseURL is the tenant URL, e.g. https://tenant.eu.auth0.com
	BaseURL string `mapstructure:"base_url"`
	// JWKSPath is resolved against BaseURL
	JWKSPath string `mapstructure:"jwks_path"`
	// KID is the key identifier to look up
	KID string `mapstructure:"kid"`

	Timeout            time.Duration `mapstructure:"timeout"`
	Retries            int           `mapstructure:"retries"`
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	TimeToLive         time.Duration `mapstructure:"time_to_live"`
	LogLevel           string        `mapstructure:"log_level"`
}

// env maps config keys to the environment variables they are read from.
var env = map[string]string{
	"base_url":             "AUTH0_BASE_URL",
	"jwks_path":            "JWKS_PATH",
	"kid":                  "KID",
	"timeout":              "JWKS_TIMEOUT",
	"retries":              "JWKS_RETRIES",
	"min_refresh_interval": "JWKS_MIN_REFRESH_INTERVAL",
	"time_to_live":         "JWKS_TIME_TO_LIVE",
	"log_level":            "JWKS_LOG_LEVEL",
}

// Load reads the configuration from defaults, the optional config file,
// environment variables and flags, later sources overriding earlier ones.
// Flags are matched by key with underscores written as dashes.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("jwks_path", DefaultJWKSPath)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("retries", 0)
	v.SetDefault("min_refresh_interval", DefaultMinRefreshInterval)
	v.SetDefault("time_to_live", DefaultTimeToLive)
	v.SetDefault("log_level", DefaultLogLevel)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, jerrors.NewConfigurationError("failed to read config file", err)
		}
	}

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, jerrors.NewConfigurationError(fmt.Sprintf("failed to bind %s", name), err)
		}
	}

	if flags != nil {
		for key := range env {
			flag := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, jerrors.NewConfigurationError(fmt.Sprintf("failed to bind flag %s", flag.Name), err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, jerrors.NewConfigurationError("failed to decode configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return jerrors.NewConfigurationError("base url is required (AUTH0_BASE_URL)", nil)
	}
	if _, err := c.JWKSURL(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return jerrors.NewConfigurationError(fmt.Sprintf("timeout must be positive, got %s", c.Timeout), nil)
	}
	if c.Retries < 0 {
		return jerrors.NewConfigurationError(fmt.Sprintf("retries must be non-negative, got %d", c.Retries), nil)
	}
	if c.MinRefreshInterval < 0 {
		return jerrors.NewConfigurationError("min refresh interval must be non-negative", nil)
	}
	if c.TimeToLive < 0 {
		return jerrors.NewConfigurationError("time to live must be non-negative", nil)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return jerrors.NewConfigurationError("invalid log level", err)
	}
	return nil
}

// JWKSURL resolves JWKSPath against BaseURL. A base URL without a trailing
// slash is treated as a directory.
func (c *Config) JWKSURL() (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", jerrors.NewConfigurationError(fmt.Sprintf("invalid base url %q", c.BaseURL), err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", jerrors.NewConfigurationError(fmt.Sprintf("base url %q must be absolute", c.BaseURL), nil)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	ref, err := url.Parse(c.JWKSPath)
	if err != nil {
		return "", jerrors.NewConfigurationError(fmt.Sprintf("invalid jwks path %q", c.JWKSPath), err)
	}

	return base.ResolveReference(ref).String(), nil
}
