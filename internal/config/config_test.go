package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.GetTheme())
	assert.True(t, cfg.WatchStore())
	assert.Zero(t, cfg.RefreshInterval())
}

func TestLoadParsesAllSections(t *testing.T) {
	p := writeConfig(t, `
theme = "light"

[store]
path = "/tmp/jkl/store.json"

[tmux]
socket = "work"

[tui]
refresh_interval_secs = 5
watch_store = false

[logs]
debug_level = "debug"
debug_format = "text"
debug_max_mb = 2
debug_backups = 1
debug_retention_days = 7
debug_compress = true
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "light", cfg.ResolveTheme())
	assert.Equal(t, "work", cfg.Socket(""))
	assert.Equal(t, "other", cfg.Socket("other"))
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval())
	assert.False(t, cfg.WatchStore())

	lc := cfg.Logging(true)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "text", lc.Format)
	assert.Equal(t, 2, lc.MaxSizeMB)
	assert.Equal(t, 1, lc.MaxBackups)
	assert.Equal(t, 7, lc.MaxAgeDays)
	assert.True(t, lc.Compress)
	assert.True(t, lc.Debug)
}

func TestLoadParseErrorReturnsDefaults(t *testing.T) {
	p := writeConfig(t, "theme = \n[[[")
	cfg, err := Load(p)
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "dark", cfg.GetTheme())
}

func TestUnknownThemeFallsBackToDark(t *testing.T) {
	cfg := &Config{Theme: "solarized"}
	assert.Equal(t, "dark", cfg.GetTheme())
}

func TestResolveSystemTheme(t *testing.T) {
	orig := isDarkMode
	t.Cleanup(func() { isDarkMode = orig })
	cfg := &Config{Theme: "system"}

	isDarkMode = func() (bool, error) { return false, nil }
	assert.Equal(t, "light", cfg.ResolveTheme())

	isDarkMode = func() (bool, error) { return true, nil }
	assert.Equal(t, "dark", cfg.ResolveTheme())

	isDarkMode = func() (bool, error) { return false, errors.New("unsupported") }
	assert.Equal(t, "dark", cfg.ResolveTheme())
}

func TestStorePathPrecedence(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(EnvStore, "")
	cfg := &Config{}

	assert.Equal(t, filepath.Join(xdg, "jkl", StoreFileName), cfg.StorePath(""))

	cfg.Store.Path = "/from/config.json"
	assert.Equal(t, "/from/config.json", cfg.StorePath(""))

	t.Setenv(EnvStore, "/from/env.json")
	assert.Equal(t, "/from/env.json", cfg.StorePath(""))

	assert.Equal(t, "/from/flag.json", cfg.StorePath("/from/flag.json"))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.json"), ExpandHome("~/x/y.json"))
	assert.Equal(t, "/abs/p", ExpandHome("/abs/p"))
	assert.Equal(t, "~user/p", ExpandHome("~user/p"))
}

func TestStateDirHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "jkl"), StateDir())
}

func TestDebugEnabled(t *testing.T) {
	t.Setenv(EnvDebug, "")
	assert.False(t, DebugEnabled(false))
	assert.True(t, DebugEnabled(true))

	t.Setenv(EnvDebug, "1")
	assert.True(t, DebugEnabled(false))

	t.Setenv(EnvDebug, "nah")
	assert.False(t, DebugEnabled(false))
}
