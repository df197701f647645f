// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appDir = "typerace"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDBPath returns the default path for the practice history database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appDir, "typerace.db")
}

// DefaultServerDBPath returns the default path for the server's room database.
func DefaultServerDBPath() string {
	return filepath.Join(XDGDataHome(), appDir, "server.db")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "config.toml")
}

// DefaultIdentityPath returns where the local player identity is kept.
func DefaultIdentityPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "identity.toml")
}

// DefaultLogPath returns where terminal commands write their log, keeping
// the alternate screen free of log output.
func DefaultLogPath() string {
	return filepath.Join(XDGDataHome(), appDir, "typerace.log")
}
