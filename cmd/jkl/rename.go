package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkl-dev/jkl/internal/store"
)

func (a *app) renameCmd() *cobra.Command {
	var allowMissing bool
	cmd := &cobra.Command{
		Use:   "rename <session id or name> <new name...>",
		Short: "Move a stored session to a new name",
		Long: `Move the record of a session to its new name. The first argument is
matched against stored tmux session ids first, then against names. An id
match is only trusted when the live session holding the id is the one that
was recorded; tmux hands out ids again after a server restart.

This is what the session-renamed hook installed by "jkl hooks install" runs.`,
		Args: minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRename(cmd.Context(), args[0], joinWords(args[1:]), allowMissing)
		},
	}
	cmd.Flags().BoolVar(&allowMissing, "allow-missing", false, "succeed when nothing is stored for the session")
	return cmd
}

func (a *app) runRename(ctx context.Context, from, to string, allowMissing bool) error {
	if to == "" {
		return usageErrorf("rename: new name is empty")
	}
	st, err := a.loadStore()
	if err != nil {
		return err
	}

	var created int64
	if strings.HasPrefix(from, "$") {
		if s, ok := a.lookupSession(ctx, from); ok && s.ID == from {
			created = s.Created
		}
	}

	if _, err := st.ResolveRename(from, to, created); err != nil {
		var nf *store.NotFoundError
		if allowMissing && errors.As(err, &nf) {
			cliLog.Debug("rename_nothing_stored", slog.String("from", from), slog.String("to", to))
			return nil
		}
		return err
	}
	return st.Save()
}
