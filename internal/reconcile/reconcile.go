// Package reconcile merges live tmux state with stored metadata into the
// rows shown by the list and the TUI.
package reconcile

import (
	"context"
	"sort"

	"github.com/jkl-dev/jkl/internal/identity"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

// LiveStateProvider enumerates the sessions of a running tmux server.
// *tmux.Client implements it.
type LiveStateProvider interface {
	ListSessions(ctx context.Context) ([]tmux.Session, error)
}

// Row is one session in the reconciled view. Live is nil for a session
// that only exists in the store; Record is nil for a live session nobody
// has annotated yet.
type Row struct {
	Key    identity.Key
	Name   string
	Live   *tmux.Session
	Record *store.SessionRecord
	Panes  []PaneRow
}

// Historical reports whether the row has no live session.
func (r Row) Historical() bool { return r.Live == nil }

// Switchable reports whether tmux can switch to the row.
func (r Row) Switchable() bool { return r.Live != nil }

// SessionID returns the live session id, or "" for historical rows.
func (r Row) SessionID() string {
	if r.Live == nil {
		return ""
	}
	return r.Live.ID
}

// Status returns the stored session status, if any.
func (r Row) Status() store.Status {
	if r.Record == nil {
		return store.StatusNone
	}
	return r.Record.Status
}

// Context returns the stored session context, if any.
func (r Row) Context() string {
	if r.Record == nil {
		return ""
	}
	return r.Record.Context
}

// PaneRow is one pane under a Row.
type PaneRow struct {
	ID     string
	Live   *tmux.Pane
	Record *store.PaneRecord
	// sessionLive is false for every pane of a historical session.
	sessionLive bool
}

// Historical reports whether the pane no longer exists.
func (p PaneRow) Historical() bool { return p.Live == nil }

// Switchable is true only for live panes of live sessions.
func (p PaneRow) Switchable() bool { return p.Live != nil && p.sessionLive }

// Status returns the stored pane status, if any.
func (p PaneRow) Status() store.Status {
	if p.Record == nil {
		return store.StatusNone
	}
	return p.Record.Status
}

// Context returns the stored pane context, if any.
func (p PaneRow) Context() string {
	if p.Record == nil {
		return ""
	}
	return p.Record.Context
}

// Reconcile merges live sessions with st. Live rows come first in tmux
// order, followed by stored-only rows sorted by name then key. The result
// depends only on its inputs and holds copies, so later store mutations do
// not show through.
func Reconcile(live []tmux.Session, st *store.Store) []Row {
	rows := make([]Row, 0, len(live)+st.Len())
	seen := make(map[identity.Key]bool, len(live))

	for i := range live {
		sess := live[i]
		key := identity.KeyFor(sess.Name)
		if seen[key] {
			// Two live sessions cannot share a name; guard against a
			// hash collision producing a duplicate row.
			continue
		}
		seen[key] = true

		rec, _ := st.Get(key)
		rows = append(rows, Row{
			Key:    key,
			Name:   sess.Name,
			Live:   &sess,
			Record: rec,
			Panes:  mergePanes(sess.Panes, rec, true),
		})
	}

	for _, e := range st.Entries() {
		if seen[e.Key] {
			continue
		}
		rows = append(rows, Row{
			Key:    e.Key,
			Name:   e.Record.SessionName,
			Record: e.Record,
			Panes:  mergePanes(nil, e.Record, false),
		})
	}
	return rows
}

func mergePanes(live []tmux.Pane, rec *store.SessionRecord, sessionLive bool) []PaneRow {
	var stored map[string]*store.PaneRecord
	if rec != nil {
		stored = rec.Panes
	}

	out := make([]PaneRow, 0, len(live)+len(stored))
	used := make(map[string]bool, len(live))
	for i := range live {
		p := live[i]
		used[p.ID] = true
		out = append(out, PaneRow{
			ID:          p.ID,
			Live:        &p,
			Record:      stored[p.ID],
			sessionLive: sessionLive,
		})
	}

	var gone []string
	for id := range stored {
		if !used[id] {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		out = append(out, PaneRow{ID: id, Record: stored[id], sessionLive: sessionLive})
	}
	return out
}

// LivePaneSets maps each live session name to the set of its pane ids, the
// input Store.PrunePanes expects.
func LivePaneSets(live []tmux.Session) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(live))
	for _, s := range live {
		ids := make(map[string]struct{}, len(s.Panes))
		for _, p := range s.Panes {
			ids[p.ID] = struct{}{}
		}
		out[s.Name] = ids
	}
	return out
}
