package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "jkl"

const (
	// ConfigFileName is the TOML config file inside ConfigDir.
	ConfigFileName = "config.toml"
	// StoreFileName is the metadata store inside ConfigDir.
	StoreFileName = "session_context.json"
)

func configHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}

func stateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state")
	}
	return ""
}

// ConfigDir returns $XDG_CONFIG_HOME/jkl, or "" when no home is known.
func ConfigDir() string {
	base := configHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, AppName)
}

// StateDir returns $XDG_STATE_HOME/jkl. Debug logs live here.
func StateDir() string {
	base := stateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, AppName)
}

// ConfigPath returns the path of config.toml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ConfigFileName)
}

// DefaultStorePath returns $XDG_CONFIG_HOME/jkl/session_context.json.
func DefaultStorePath() string {
	dir := ConfigDir()
	if dir == "" {
		return StoreFileName
	}
	return filepath.Join(dir, StoreFileName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
