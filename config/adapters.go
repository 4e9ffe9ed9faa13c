package config

import (
	"github.com/sirupsen/logrus"

	"github.com/aethiopicuschan/stund/dgram"
	"github.com/aethiopicuschan/stund/stun"
	"github.com/aethiopicuschan/stund/stund"
)

// SocketFamily returns the socket family of the server section.
func (c ServerConfig) SocketFamily() dgram.Family {
	if c.Family == "ipv6" {
		return dgram.FamilyIPv6
	}
	return dgram.FamilyIPv4
}

// ProtocolCompatibility returns the agent compatibility mode.
func (c ServerConfig) ProtocolCompatibility() stun.Compatibility {
	if c.Compatibility == "rfc5389" {
		return stun.CompatRFC5389
	}
	return stun.CompatRFC3489
}

// StundConfig converts the server section for stund.Listen.
func (c ServerConfig) StundConfig(log logrus.FieldLogger) stund.Config {
	return stund.Config{
		Family:              c.SocketFamily(),
		Port:                c.Port,
		Software:            c.Software,
		Fingerprint:         c.Fingerprint,
		Compatibility:       c.ProtocolCompatibility(),
		MaxMessageSize:      c.MaxMessageSize,
		KnownAttributes:     c.KnownAttributes,
		AllowStdDescriptors: c.AllowStdDescriptors,
		DisableErrorQueue:   c.DisableErrorQueue,
		Logger:              log,
	}
}

// NewLogger builds a logrus logger from the logging section.
func (c LoggingConfig) NewLogger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Level); err == nil {
		log.SetLevel(lvl)
	}
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
