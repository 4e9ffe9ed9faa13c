// Package config loads the responder configuration from an optional file,
// STUND_* environment variables and command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STUND_SERVER_PORT.
const EnvPrefix = "STUND"

// Config is the complete responder configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`

	Server ServerConfig `mapstructure:"server"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

type ServerConfig struct {
	Family string `mapstructure:"family" validate:"required,oneof=ipv4 ipv6"`

	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`

	// Software is sent in every response. Empty disables the attribute.
	Software string `mapstructure:"software" validate:"max=763"`

	Fingerprint bool `mapstructure:"fingerprint"`

	Compatibility string `mapstructure:"compatibility" validate:"required,oneof=rfc3489 rfc5389"`

	MaxMessageSize int `mapstructure:"max_message_size" validate:"gte=576,lte=65552"`

	// KnownAttributes are comprehension-required attribute types accepted
	// in requests.
	KnownAttributes []uint16 `mapstructure:"known_attributes" validate:"dive,lt=32768"`

	AllowStdDescriptors bool `mapstructure:"allow_std_descriptors"`

	DisableErrorQueue bool `mapstructure:"disable_error_queue"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"software":         "server.software",
	"fingerprint":      "server.fingerprint",
	"compat":           "server.compatibility",
	"max-message-size": "server.max_message_size",
}

// Load reads the configuration.
//
// Precedence from highest to lowest: flags that were set, environment,
// the file at configPath (or stund.yaml in the config directory when
// configPath is empty), defaults. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)
	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("stund")
		v.SetConfigType("yaml")
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/stund or ~/.config/stund.
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stund")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "stund")
}
