package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jkl-dev/jkl/internal/reconcile"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

const (
	listColName   = 28
	listColStatus = 8
	listColPanes  = 5
)

type paneJSON struct {
	ID      string       `json:"id"`
	Live    bool         `json:"live"`
	Window  *int         `json:"window,omitempty"`
	Index   *int         `json:"index,omitempty"`
	Command string       `json:"command,omitempty"`
	Status  store.Status `json:"status,omitempty"`
	Context string       `json:"context,omitempty"`
}

type sessionJSON struct {
	Key       string       `json:"key"`
	Name      string       `json:"session_name"`
	SessionID string       `json:"session_id,omitempty"`
	Live      bool         `json:"live"`
	Status    store.Status `json:"status,omitempty"`
	Context   string       `json:"context,omitempty"`
	Panes     []paneJSON   `json:"panes"`
}

func (a *app) listCmd() *cobra.Command {
	var jsonOutput, all bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print live sessions with their stored status and context",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd.Context(), jsonOutput, all)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "include stored sessions that are not running")
	return cmd
}

func (a *app) runList(ctx context.Context, jsonOutput, all bool) error {
	st, err := a.loadStore()
	if err != nil {
		return err
	}

	live, err := a.tmuxClient().ListSessions(ctx)
	switch {
	case errors.Is(err, tmux.ErrNoServer):
		fmt.Fprintf(a.errOut, "Warning: %v; showing stored sessions only\n", err)
		live, all = nil, true
	case err != nil:
		return err
	}

	var rows []reconcile.Row
	for _, r := range reconcile.Reconcile(live, st) {
		if r.Historical() && !all {
			continue
		}
		rows = append(rows, r)
	}

	if jsonOutput {
		return writeListJSON(a.out, rows)
	}
	writeListTable(a.out, rows)
	return nil
}

func writeListJSON(w io.Writer, rows []reconcile.Row) error {
	out := make([]sessionJSON, 0, len(rows))
	for _, r := range rows {
		s := sessionJSON{
			Key:       r.Key.String(),
			Name:      r.Name,
			SessionID: r.SessionID(),
			Live:      !r.Historical(),
			Status:    r.Status(),
			Context:   r.Context(),
			Panes:     make([]paneJSON, 0, len(r.Panes)),
		}
		for _, p := range r.Panes {
			pj := paneJSON{
				ID:      p.ID,
				Live:    !p.Historical(),
				Status:  p.Status(),
				Context: p.Context(),
			}
			if p.Live != nil {
				pj.Window = &p.Live.WindowIndex
				pj.Index = &p.Live.PaneIndex
				pj.Command = p.Live.Command
			}
			s.Panes = append(s.Panes, pj)
		}
		out = append(out, s)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeListTable(w io.Writer, rows []reconcile.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	fmt.Fprintf(w, "%s %s %s %s\n",
		cell("SESSION", listColName), cell("STATUS", listColStatus), cell("PANES", listColPanes), "CONTEXT")
	for _, r := range rows {
		name := r.Name
		if r.Historical() {
			name += " ~"
		}
		fmt.Fprintf(w, "%s %s %s %s\n",
			cell(name, listColName),
			cell(statusCell(r.Status()), listColStatus),
			cell(fmt.Sprint(len(r.Panes)), listColPanes),
			oneLine(r.Context()))
		for _, p := range r.Panes {
			label := "  " + p.ID
			if p.Historical() {
				label += " ~"
			}
			fmt.Fprintf(w, "%s %s %s %s\n",
				cell(label, listColName),
				cell(statusCell(p.Status()), listColStatus),
				cell("", listColPanes),
				oneLine(p.Context()))
		}
	}
}

func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func statusCell(s store.Status) string {
	if s == store.StatusNone {
		return "-"
	}
	return string(s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
