package tmux

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Session is a live tmux session and its panes.
type Session struct {
	ID      string // $N
	Name    string
	Created int64  // #{session_created}, unix seconds
	Panes   []Pane // ordered by window index, then pane index
}

// Pane is a live tmux pane.
type Pane struct {
	ID          string // %N
	WindowIndex int
	PaneIndex   int
	Active      bool
	Width       int
	Height      int
	Command     string
}

const (
	sessionFormat = "#{session_id}\t#{session_created}\t#{session_name}"
	paneFormat    = "#{session_id}\t#{pane_id}\t#{window_index}\t#{pane_index}\t#{pane_active}\t#{pane_width}\t#{pane_height}\t#{pane_current_command}"
)

// ListSessions returns every live session in the order tmux reports them,
// each with its panes. Concurrent callers share one pair of tmux calls.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	v, err, shared := c.sf.Do("list", func() (any, error) {
		return c.listSessions(ctx)
	})
	if err != nil {
		return nil, err
	}
	sessions := v.([]Session)
	if shared {
		// Callers own their slice.
		out := make([]Session, len(sessions))
		for i, s := range sessions {
			out[i] = s
			out[i].Panes = append([]Pane(nil), s.Panes...)
		}
		return out, nil
	}
	return sessions, nil
}

func (c *Client) listSessions(ctx context.Context) ([]Session, error) {
	sessOut, err := c.run(ctx, "list-sessions", "-F", sessionFormat)
	if err != nil {
		return nil, err
	}
	paneOut, err := c.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil, err
	}

	sessions := parseSessions(sessOut)
	panes, skipped := parsePanes(paneOut)
	if skipped > 0 {
		tmuxLog.Warn("list_panes_skipped_lines", slog.Int("count", skipped))
	}
	attachPanes(sessions, panes)

	tmuxLog.Debug("list_sessions",
		slog.Int("sessions", len(sessions)),
		slog.Int("panes", len(panes)))
	return sessions, nil
}

// parseSessions parses list-sessions output. The name is everything after
// the second tab so names containing tabs survive.
func parseSessions(out string) []Session {
	var sessions []Session
	for _, line := range splitLines(out) {
		id, rest, ok := strings.Cut(line, "\t")
		if !ok || id == "" {
			continue
		}
		stamp, name, ok := strings.Cut(rest, "\t")
		if !ok || name == "" {
			continue
		}
		created, _ := strconv.ParseInt(stamp, 10, 64)
		sessions = append(sessions, Session{ID: id, Name: name, Created: created})
	}
	return sessions
}

type sessionPane struct {
	sessionID string
	pane      Pane
}

// parsePanes parses list-panes -a output. The command field is last so a
// command containing tabs is kept whole. Malformed lines are counted and
// skipped.
func parsePanes(out string) ([]sessionPane, int) {
	var panes []sessionPane
	skipped := 0
	for _, line := range splitLines(out) {
		p, err := parsePaneLine(line)
		if err != nil {
			skipped++
			continue
		}
		panes = append(panes, p)
	}
	return panes, skipped
}

func parsePaneLine(line string) (sessionPane, error) {
	f := strings.SplitN(line, "\t", 8)
	if len(f) < 7 || f[0] == "" || f[1] == "" {
		return sessionPane{}, fmt.Errorf("malformed pane line %q", line)
	}
	ints := make([]int, 4)
	for i, raw := range []string{f[2], f[3], f[5], f[6]} {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return sessionPane{}, fmt.Errorf("pane line %q: %w", line, err)
		}
		ints[i] = n
	}
	p := Pane{
		ID:          f[1],
		WindowIndex: ints[0],
		PaneIndex:   ints[1],
		Active:      f[4] == "1",
		Width:       ints[2],
		Height:      ints[3],
	}
	if len(f) == 8 {
		p.Command = f[7]
	}
	return sessionPane{sessionID: f[0], pane: p}, nil
}

// attachPanes groups panes under their session by session id.
func attachPanes(sessions []Session, panes []sessionPane) {
	idx := make(map[string]int, len(sessions))
	for i, s := range sessions {
		idx[s.ID] = i
	}
	for _, sp := range panes {
		i, ok := idx[sp.sessionID]
		if !ok {
			continue
		}
		sessions[i].Panes = append(sessions[i].Panes, sp.pane)
	}
	for i := range sessions {
		ps := sessions[i].Panes
		sort.SliceStable(ps, func(a, b int) bool {
			if ps[a].WindowIndex != ps[b].WindowIndex {
				return ps[a].WindowIndex < ps[b].WindowIndex
			}
			return ps[a].PaneIndex < ps[b].PaneIndex
		})
	}
}

func splitLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
