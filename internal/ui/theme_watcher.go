package ui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS dark mode setting while the list is open.
// Only used when the configured theme is "system".
type ThemeWatcher struct {
	changeCh  chan bool // true for dark
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform cannot
// report changes; the theme picked at startup then stays.
func NewThemeWatcher(parent context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parent)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{changeCh: make(chan bool, 1), cancel: cancel}
	go tw.loop(ctx, events, errs)
	return tw
}

// loop is the only sender on changeCh and closes it on return, which ends
// a pending listenForThemeChanges.
func (tw *ThemeWatcher) loop(ctx context.Context, events <-chan bool, errs <-chan error) {
	defer close(tw.changeCh)
	for {
		select {
		case <-ctx.Done():
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			// keep only the latest value
			select {
			case <-tw.changeCh:
			default:
			}
			tw.changeCh <- isDark
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes delivers the new dark mode state after each OS switch. It is
// closed once the watcher stops.
func (tw *ThemeWatcher) Changes() <-chan bool {
	return tw.changeCh
}

// Close stops the watcher. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(tw.cancel)
}

type themeChangedMsg struct{ dark bool }

func listenForThemeChanges(tw *ThemeWatcher) tea.Cmd {
	return func() tea.Msg {
		isDark, ok := <-tw.Changes()
		if !ok {
			return nil
		}
		return themeChangedMsg{dark: isDark}
	}
}

// themeName maps a dark mode flag to the InitTheme argument.
func themeName(isDark bool) string {
	if isDark {
		return string(ThemeDark)
	}
	return string(ThemeLight)
}
