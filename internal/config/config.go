// Package config loads the optional config.toml and resolves the paths
// and settings the commands run with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/jkl-dev/jkl/internal/logging"
)

// Environment overrides.
const (
	EnvStore = "JKL_STORE"
	EnvDebug = "JKL_DEBUG"
	EnvColor = "JKL_COLOR"
)

// Config mirrors config.toml. Every field is optional; the getters apply
// defaults.
type Config struct {
	// Theme is "dark" (default), "light" or "system"
	Theme string `toml:"theme"`

	Store StoreSettings `toml:"store"`
	Tmux  TmuxSettings  `toml:"tmux"`
	TUI   TUISettings   `toml:"tui"`
	Logs  LogSettings   `toml:"logs"`
}

// StoreSettings configures the metadata store.
type StoreSettings struct {
	// Path overrides the store location. "~" is expanded.
	Path string `toml:"path"`
}

// TmuxSettings configures the tmux client.
type TmuxSettings struct {
	// Socket is passed to tmux as -L when set.
	Socket string `toml:"socket"`
}

// TUISettings configures the interactive list.
type TUISettings struct {
	// RefreshIntervalSecs re-reads tmux state periodically; 0 disables it.
	RefreshIntervalSecs int `toml:"refresh_interval_secs"`

	// WatchStore shows an indicator when the store file changes on disk.
	// Default: true
	WatchStore *bool `toml:"watch_store"`
}

// LogSettings configures the debug log.
type LogSettings struct {
	DebugLevel         string `toml:"debug_level"`
	DebugFormat        string `toml:"debug_format"`
	DebugMaxMB         int    `toml:"debug_max_mb"`
	DebugBackups       int    `toml:"debug_backups"`
	DebugRetentionDays int    `toml:"debug_retention_days"`
	DebugCompress      bool   `toml:"debug_compress"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{Theme: "dark"}
}

// Load reads the config file at path. A missing file yields defaults. On a
// parse error the defaults are returned together with the error so the
// caller can report it and carry on.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("config.toml parse error: %w", err)
	}
	return &cfg, nil
}

// GetTheme returns the configured theme, defaulting to "dark".
func (c *Config) GetTheme() string {
	switch c.Theme {
	case "dark", "light", "system":
		return c.Theme
	default:
		return "dark"
	}
}

// isDarkMode is swapped in tests.
var isDarkMode = dark.IsDarkMode

// ResolveTheme resolves the theme to "dark" or "light". "system" asks the
// OS and falls back to "dark" when detection fails.
func (c *Config) ResolveTheme() string {
	theme := c.GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := isDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// StorePath resolves the store location: flag, then $JKL_STORE, then
// store.path, then the XDG default.
func (c *Config) StorePath(flag string) string {
	if flag != "" {
		return ExpandHome(flag)
	}
	if env := os.Getenv(EnvStore); env != "" {
		return ExpandHome(env)
	}
	if c.Store.Path != "" {
		return ExpandHome(c.Store.Path)
	}
	return DefaultStorePath()
}

// Socket returns the tmux socket name, flag first.
func (c *Config) Socket(flag string) string {
	if flag != "" {
		return flag
	}
	return c.Tmux.Socket
}

// RefreshInterval returns the auto-refresh period, 0 when disabled.
func (c *Config) RefreshInterval() time.Duration {
	if c.TUI.RefreshIntervalSecs <= 0 {
		return 0
	}
	return time.Duration(c.TUI.RefreshIntervalSecs) * time.Second
}

// WatchStore reports whether the TUI watches the store file.
func (c *Config) WatchStore() bool {
	if c.TUI.WatchStore == nil {
		return true
	}
	return *c.TUI.WatchStore
}

// DebugEnabled reports whether debug logging was requested by flag or by
// $JKL_DEBUG.
func DebugEnabled(flag bool) bool {
	if flag {
		return true
	}
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvDebug)))
	return err == nil && v
}

// Logging builds the logging configuration.
func (c *Config) Logging(debug bool) logging.Config {
	return logging.Config{
		LogDir:     StateDir(),
		Level:      c.Logs.DebugLevel,
		Format:     c.Logs.DebugFormat,
		MaxSizeMB:  c.Logs.DebugMaxMB,
		MaxBackups: c.Logs.DebugBackups,
		MaxAgeDays: c.Logs.DebugRetentionDays,
		Compress:   c.Logs.DebugCompress,
		Debug:      debug,
	}
}
