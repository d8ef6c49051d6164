// Package config handles application configuration using Viper.
//
// Values come from, in increasing precedence: built-in defaults,
// ~/.ignite/config.yaml (or --config), IGNITE_* environment variables
// (IGNITE_API_URL for api.url) and bound command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/log"
)

// EnvPrefix is prepended to environment variable names.
const EnvPrefix = "IGNITE"

// Keys
const (
	KeyAPIURL                 = "api.url"
	KeyAPITimeout             = "api.timeout"
	KeyStoreType              = "store.type"
	KeyStoreDir               = "store.dir"
	KeyStoreEncryptionKey     = "store.encryption_key"
	KeyRefreshTimeout         = "refresh.timeout"
	KeyRefreshProactiveWindow = "refresh.proactive_window"
	KeyTransportExpiredMsg    = "transport.expired_message"
	KeyLogLevel               = "log.level"
	KeyLogFormat              = "log.format"
	KeyMetricsAddr            = "metrics.addr"
)

// Config holds the application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Refresh   RefreshConfig   `mapstructure:"refresh" yaml:"refresh"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Type          string `mapstructure:"type" yaml:"type"`
	Dir           string `mapstructure:"dir" yaml:"dir"`
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
}

// RefreshConfig tunes token refresh.
type RefreshConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ProactiveWindow time.Duration `mapstructure:"proactive_window" yaml:"proactive_window"`
}

// TransportConfig holds transport-level settings.
type TransportConfig struct {
	// ExpiredMessage marks 401 responses carrying this exact message as
	// token expiry, for servers that do not send an error code.
	ExpiredMessage string `mapstructure:"expired_message" yaml:"expired_message,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig holds the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// StoreFactoryConfig converts the store section for credstore.New.
func (c *Config) StoreFactoryConfig() credstore.Config {
	return credstore.Config{
		Type:          c.Store.Type,
		Dir:           c.Store.Dir,
		EncryptionKey: c.Store.EncryptionKey,
	}
}

// DefaultHome returns ~/.ignite, or .ignite when the home directory is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ignite"
	}
	return filepath.Join(home, ".ignite")
}

// New creates a Viper instance with defaults, the config file and the
// environment wired in. A missing config file is not an error.
func New(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultHome())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, auth.WrapError(auth.ErrConfig, "failed to read config file", err, map[string]interface{}{
				"path": configPath,
			})
		}
	}

	return v, nil
}

// BindFlags binds flags by name to configuration keys. Flags that are not
// defined on fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	for key, flag := range bindings {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return auth.WrapError(auth.ErrConfig, fmt.Sprintf("failed to bind flag --%s", flag), err, nil)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, auth.WrapError(auth.ErrConfig, "failed to decode configuration", err, nil)
	}

	cfg.Store.Dir = expandHome(cfg.Store.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return configError(KeyAPIURL, "must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return configError(KeyAPITimeout, "must be positive")
	}
	switch c.Store.Type {
	case credstore.TypeFile:
		if c.Store.Dir == "" {
			return configError(KeyStoreDir, "is required for the file store")
		}
	case credstore.TypeMemory:
	default:
		return configError(KeyStoreType, fmt.Sprintf("must be %q or %q", credstore.TypeFile, credstore.TypeMemory))
	}
	if c.Refresh.Timeout <= 0 {
		return configError(KeyRefreshTimeout, "must be positive")
	}
	if c.Refresh.ProactiveWindow < 0 {
		return configError(KeyRefreshProactiveWindow, "must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return configError(KeyLogLevel, "must be one of debug, info, warn, error")
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return configError(KeyLogFormat, `must be "json" or "text"`)
	}
	return nil
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := []string{
		KeyAPIURL, KeyAPITimeout,
		KeyStoreType, KeyStoreDir, KeyStoreEncryptionKey,
		KeyRefreshTimeout, KeyRefreshProactiveWindow,
		KeyTransportExpiredMsg,
		KeyLogLevel, KeyLogFormat,
		KeyMetricsAddr,
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://localhost:3333")
	v.SetDefault(KeyAPITimeout, 30*time.Second)
	v.SetDefault(KeyStoreType, credstore.TypeFile)
	v.SetDefault(KeyStoreDir, DefaultHome())
	v.SetDefault(KeyStoreEncryptionKey, "")
	v.SetDefault(KeyRefreshTimeout, 30*time.Second)
	v.SetDefault(KeyRefreshProactiveWindow, time.Duration(0))
	v.SetDefault(KeyTransportExpiredMsg, "")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyMetricsAddr, "")
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func configError(key, msg string) error {
	return auth.NewError(auth.ErrConfig, fmt.Sprintf("%s %s", key, msg), map[string]interface{}{
		"key": key,
	})
}
