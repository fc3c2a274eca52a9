// Package zlog builds the structured zap loggers used by groupgate services.
package zlog

import (
	"fmt"
	"strings"
)

// Config selects the log level and encoding for one service.
type Config struct {
	Service  string
	Level    string `env:"GROUPGATE_LOG_LEVEL" envDefault:"info"`
	Encoding string `env:"GROUPGATE_LOG_ENCODING" envDefault:"json"`
}

// Validate normalizes the config and rejects unknown values.
func (c *Config) Validate() error {
	c.Service = strings.TrimSpace(c.Service)
	if c.Service == "" {
		return fmt.Errorf("log config: service is required")
	}

	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "info"
	}
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log config: level must be one of debug/info/warn/error, got %q", c.Level)
	}

	c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
	if c.Encoding == "" {
		c.Encoding = "json"
	}
	switch c.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log config: encoding must be json or console, got %q", c.Encoding)
	}
	return nil
}
