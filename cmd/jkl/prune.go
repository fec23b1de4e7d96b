package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jkl-dev/jkl/internal/reconcile"
)

func (a *app) pruneCmd() *cobra.Command {
	var sessions bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop stored panes that no longer exist",
		Long: `Drop pane records of running sessions whose pane is gone. With --sessions,
records of sessions that are not running are removed as well.

Needs a running tmux server: without one nothing can be told apart.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPrune(cmd.Context(), sessions)
		},
	}
	cmd.Flags().BoolVar(&sessions, "sessions", false, "also remove sessions that are not running")
	return cmd
}

func (a *app) runPrune(ctx context.Context, sessions bool) error {
	st, err := a.loadStore()
	if err != nil {
		return err
	}
	live, err := a.tmuxClient().ListSessions(ctx)
	if err != nil {
		return err
	}

	panes := st.PrunePanes(reconcile.LivePaneSets(live))
	removed := 0
	if sessions {
		for _, r := range reconcile.Reconcile(live, st) {
			if r.Historical() && st.Remove(r.Key) {
				removed++
			}
		}
	}

	if panes > 0 || removed > 0 {
		if err := st.Save(); err != nil {
			return err
		}
	}
	cliLog.Info("prune_applied", slog.Int("panes", panes), slog.Int("sessions", removed))
	fmt.Fprintf(a.out, "Pruned %d pane(s) and %d session(s).\n", panes, removed)
	return nil
}
