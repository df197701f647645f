// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Server   ServerConfig   `toml:"server"`
	Client   ClientConfig   `toml:"client"`
}

// PracticeConfig maps solo practice settings.
type PracticeConfig struct {
	Words      *int    `toml:"words"`
	Duration   *int    `toml:"duration"`
	Difficulty *string `toml:"difficulty"`
	WordList   *string `toml:"wordlist"`
}

// ServerConfig maps settings of the serve command.
type ServerConfig struct {
	Addr           *string  `toml:"addr"`
	DB             *string  `toml:"db"`
	NATSURL        *string  `toml:"nats-url"`
	AllowedOrigins []string `toml:"allowed-origins"`
	LogLevel       *string  `toml:"log-level"`
}

// ClientConfig maps settings of the race commands.
type ClientConfig struct {
	Server     *string `toml:"server"`
	Capacity   *int    `toml:"capacity"`
	Duration   *int    `toml:"duration"`
	Difficulty *string `toml:"difficulty"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAddr           = "TYPERACE_ADDR"
	EnvDB             = "TYPERACE_DB"
	EnvNATSURL        = "TYPERACE_NATS_URL"
	EnvAllowedOrigins = "TYPERACE_ALLOWED_ORIGINS"
	EnvLogLevel       = "TYPERACE_LOG_LEVEL"
)

// ApplyEnv overrides server settings with TYPERACE_* variables found by lookup.
func (c *ServerConfig) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst **string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = &v
		}
	}
	set(EnvAddr, &c.Addr)
	set(EnvDB, &c.DB)
	set(EnvNATSURL, &c.NATSURL)
	set(EnvLogLevel, &c.LogLevel)
	if v, ok := lookup(EnvAllowedOrigins); ok && v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
}
