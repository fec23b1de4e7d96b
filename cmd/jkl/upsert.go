package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

// lookupTimeout bounds the best-effort tmux queries of upsert.
const lookupTimeout = 2 * time.Second

type upsertFlags struct {
	sessionID string
	paneID    string
	status    string
	context   []string
	here      bool
}

func (a *app) upsertCmd() *cobra.Command {
	var f upsertFlags
	cmd := &cobra.Command{
		Use:   "upsert [session name...]",
		Short: "Create or update the status and context of a session or pane",
		Long: `Create or update a stored session. With --pane-id the status and context
apply to that pane, otherwise to the session. Fields not given are left
unchanged. "--status none" and "--context ''" clear a field.`,
		Example: `  jkl upsert api --status working --context "wiring auth"
  jkl upsert --here --status waiting
  jkl upsert api --pane-id %3 --status done`,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusSet := changed(cmd.Flags(), "status")
			contextSet := changed(cmd.Flags(), "context")
			return a.runUpsert(cmd.Context(), args, f, statusSet, contextSet)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.sessionID, "session-id", "", "tmux session id ($N) to remember")
	fs.StringVar(&f.paneID, "pane-id", "", "apply status and context to this pane (%N)")
	fs.StringVar(&f.status, "status", "", "working, waiting, idle, done or none")
	fs.StringArrayVar(&f.context, "context", nil, "free-text context; repeated values are joined with spaces")
	fs.BoolVar(&f.here, "here", false, "use the session and pane this command runs in")
	return cmd
}

func (a *app) runUpsert(ctx context.Context, args []string, f upsertFlags, statusSet, contextSet bool) error {
	name := joinWords(args)
	sessionID, paneID := f.sessionID, f.paneID
	var created int64

	var status *store.Status
	if statusSet {
		s, err := store.ParseStatus(f.status)
		if err != nil {
			return err
		}
		status = &s
	}
	var text *string
	if contextSet {
		text = store.Ptr(strings.Join(f.context, " "))
	}

	if f.here {
		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		loc, err := a.tmuxClient().CurrentPane(lctx)
		cancel()
		if err != nil {
			return fmt.Errorf("--here: %w", err)
		}
		if name == "" {
			name = loc.SessionName
		}
		if paneID == "" {
			paneID = loc.PaneID
		}
		if sessionID == "" && name == loc.SessionName {
			sessionID, created = loc.SessionID, loc.SessionCreated
		}
	}
	if name == "" {
		return usageErrorf("upsert: a session name is required (or use --here)")
	}
	switch {
	case sessionID == "":
		if s, ok := a.lookupSession(ctx, name); ok {
			sessionID, created = s.ID, s.Created
		}
	case created == 0:
		if s, ok := a.lookupSession(ctx, sessionID); ok && s.Name == name {
			created = s.Created
		}
	}

	st, err := a.loadStore()
	if err != nil {
		return err
	}

	key := st.UpsertSession(name, store.UpsertOptions{SessionID: sessionID, SessionCreated: created})
	if paneID != "" {
		st.UpsertPane(name, paneID, store.PaneOptions{Status: status, Context: text})
	} else {
		st.UpsertSession(name, store.UpsertOptions{Status: status, Context: text})
	}
	if err := st.Save(); err != nil {
		return err
	}

	cliLog.Info("upsert_applied",
		slog.String("session", name),
		slog.String("pane", paneID),
		slog.Bool("status_set", statusSet),
		slog.Bool("context_set", contextSet))
	fmt.Fprintln(a.out, key)
	return nil
}

// lookupSession asks tmux for the live session with id or name target.
// Failures are not an error: the id and its stamp are only hints for later
// renames.
func (a *app) lookupSession(ctx context.Context, target string) (tmux.Session, bool) {
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	s, ok, err := a.tmuxClient().FindSession(lctx, target)
	if err != nil {
		if !errors.Is(err, tmux.ErrNoServer) {
			cliLog.Debug("session_lookup_failed", slog.String("target", target), slog.String("error", err.Error()))
		}
		return tmux.Session{}, false
	}
	return s, ok
}
