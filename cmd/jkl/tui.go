package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jkl-dev/jkl/internal/config"
	"github.com/jkl-dev/jkl/internal/platform"
	"github.com/jkl-dev/jkl/internal/ui"
)

type tuiOptions struct {
	paneState   bool
	sessionName string
	paneID      string
}

// errNoTerminal is returned when tui runs without a terminal on stdin and
// stdout.
var errNoTerminal = errors.New("tui needs an interactive terminal")

func (a *app) tuiCmd() *cobra.Command {
	var o tuiOptions
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive session list",
		Long: `Open the interactive session list.

With --pane-state a small selector sets the status of one pane and exits.
It is meant for a tmux binding such as:

  bind-key S display-popup -E "jkl tui --pane-state --pane-id '#{pane_id}' --session-name '#{session_name}'"`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context(), o)
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&o.paneState, "pane-state", false, "pick the status of a single pane")
	fs.StringVar(&o.sessionName, "session-name", "", "session of the pane (default: current)")
	fs.StringVar(&o.paneID, "pane-id", "", "pane to edit (default: current)")
	return cmd
}

func (a *app) runTUI(ctx context.Context, o tuiOptions) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errNoTerminal
	}
	initColorProfile()
	ui.InitTheme(a.cfg.ResolveTheme())

	st, err := a.loadStore()
	if err != nil {
		return err
	}
	client := a.tmuxClient()
	cliLog.Info("tui_started",
		slog.Bool("pane_state", o.paneState),
		slog.String("platform", platform.Detect().String()))

	if o.paneState {
		target, err := a.paneTarget(ctx, o)
		if err != nil {
			return err
		}
		m := ui.NewPaneSelect(ui.Options{Store: st, Context: ctx}, target)
		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("run pane selector: %w", err)
		}
		return m.Err()
	}

	var watcher *ui.StoreWatcher
	if a.cfg.WatchStore() {
		watcher, err = ui.NewStoreWatcher(a.storePath().String())
		if err != nil {
			cliLog.Warn("store_watch_unavailable", slog.String("error", err.Error()))
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	var theme *ui.ThemeWatcher
	if a.cfg.GetTheme() == "system" {
		if theme = ui.NewThemeWatcher(ctx); theme != nil {
			defer theme.Close()
		}
	}

	m := ui.New(ui.Options{
		Store:           st,
		Live:            client,
		Switcher:        client,
		RefreshInterval: a.cfg.RefreshInterval(),
		Watcher:         watcher,
		Theme:           theme,
		Context:         ctx,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run session list: %w", err)
	}
	return m.Err()
}

// paneTarget fills the pane selector target, asking tmux for whatever the
// flags leave out. The session id is looked up best-effort.
func (a *app) paneTarget(ctx context.Context, o tuiOptions) (ui.PaneTarget, error) {
	target := ui.PaneTarget{SessionName: o.sessionName, PaneID: o.paneID}
	if target.SessionName == "" || target.PaneID == "" {
		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		loc, err := a.tmuxClient().CurrentPane(lctx)
		cancel()
		if err != nil {
			return target, fmt.Errorf("--pane-state: cannot determine the current pane (pass --session-name and --pane-id): %w", err)
		}
		if target.SessionName == "" {
			target.SessionName = loc.SessionName
		}
		if target.PaneID == "" {
			target.PaneID = loc.PaneID
		}
		if target.SessionName == loc.SessionName {
			target.SessionID, target.SessionCreated = loc.SessionID, loc.SessionCreated
		}
	}
	if target.SessionID == "" {
		if s, ok := a.lookupSession(ctx, target.SessionName); ok && s.Name == target.SessionName {
			target.SessionID, target.SessionCreated = s.ID, s.Created
		}
	}
	return target, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// initColorProfile picks the lipgloss color profile. $JKL_COLOR overrides
// detection: truecolor, 256, 16 or none.
func initColorProfile() {
	switch strings.ToLower(os.Getenv(config.EnvColor)) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		profile := termenv.EnvColorProfile()
		if profile == termenv.Ascii && os.Getenv("NO_COLOR") == "" {
			// tmux often reports less than the outer terminal supports.
			profile = termenv.ANSI256
		}
		lipgloss.SetColorProfile(profile)
	}
}
