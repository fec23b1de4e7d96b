package main

import (
	"os"
	"testing"
)

// TestMain keeps config and state lookups away from the real home so a
// developer's store is never touched.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "jkl-cmd-test")
	if err != nil {
		panic(err)
	}
	os.Setenv("XDG_CONFIG_HOME", dir)
	os.Setenv("XDG_STATE_HOME", dir)
	os.Unsetenv("JKL_STORE")
	os.Unsetenv("JKL_DEBUG")
	os.Unsetenv("TMUX_PANE")

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
