package ui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// startThemeLoop runs the watcher loop over hand-fed channels.
func startThemeLoop(t *testing.T) (*ThemeWatcher, chan bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan bool)
	tw := &ThemeWatcher{changeCh: make(chan bool, 1), cancel: cancel}
	go tw.loop(ctx, events, make(chan error))
	return tw, events
}

func TestThemeWatcherKeepsLatestValue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tw, events := startThemeLoop(t)
	defer tw.Close()

	events <- false
	events <- true
	// the loop finishes with true before it sees the close
	close(events)

	assert.Equal(t, themeChangedMsg{dark: true}, listenForThemeChanges(tw)())
	assert.Nil(t, listenForThemeChanges(tw)())
}

func TestThemeWatcherCloseReleasesListener(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tw, _ := startThemeLoop(t)

	done := make(chan any, 1)
	go func() { done <- listenForThemeChanges(tw)() }()

	tw.Close()
	tw.Close()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("listener still blocked after Close")
	}
}
