package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/aethiopicuschan/stund/stun"
)

const (
	DefaultLogLevel      = "INFO"
	DefaultLogFormat     = "text"
	DefaultFamily        = "ipv4"
	DefaultSoftware      = "stund"
	DefaultCompatibility = "rfc3489"
)

// setDefaults registers every key with viper so environment variables
// are picked up by Unmarshal even when no file mentions the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("server.family", DefaultFamily)
	v.SetDefault("server.port", stun.DefaultPort)
	v.SetDefault("server.software", DefaultSoftware)
	v.SetDefault("server.fingerprint", false)
	v.SetDefault("server.compatibility", DefaultCompatibility)
	v.SetDefault("server.max_message_size", stun.MaxMessageSize)
	v.SetDefault("server.known_attributes", []uint16{})
	v.SetDefault("server.allow_std_descriptors", false)
	v.SetDefault("server.disable_error_queue", false)
}

// ApplyDefaults fills zero values and normalizes case.
//
// Software is left alone: an empty value turns the attribute off.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = DefaultLogFormat
	}
	cfg.Format = strings.ToLower(cfg.Format)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Family == "" {
		cfg.Family = DefaultFamily
	}
	cfg.Family = strings.ToLower(cfg.Family)

	if cfg.Port == 0 {
		cfg.Port = stun.DefaultPort
	}

	if cfg.Compatibility == "" {
		cfg.Compatibility = DefaultCompatibility
	}
	cfg.Compatibility = strings.ToLower(cfg.Compatibility)

	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = stun.MaxMessageSize
	}
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg := &Config{Server: ServerConfig{Software: DefaultSoftware}}
	ApplyDefaults(cfg)
	return cfg
}
