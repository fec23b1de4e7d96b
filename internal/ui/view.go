package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jkl-dev/jkl/internal/store"
)

const (
	defaultWidth = 80
	statusWidth  = 8
	// lines used by everything except the rows
	chromeLines = 7
)

// View renders the model
func (m *Model) View() string {
	if m.mode == ModeExiting {
		return ""
	}
	if m.mode == ModePaneStateSelect {
		return m.viewPaneSelect()
	}
	return m.render(m.Snapshot())
}

func (m *Model) render(s Snapshot) string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(s))
	b.WriteString("\n")

	if s.Banner != "" {
		b.WriteString(WarningStyle.Render(runewidth.Truncate(s.Banner, width, "…")))
		b.WriteString("\n")
	}

	switch {
	case s.Mode == ModeSearching:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case s.Filter != "":
		b.WriteString(SearchPromptStyle.Render("/ ") + s.Filter + DimStyle.Render("  (esc clears)"))
		b.WriteString("\n")
	}

	nameW := nameColumnWidth(s.Rows, width)
	b.WriteString(HeaderStyle.Render(pad("SESSION", nameW) + " " + pad("STATUS", statusWidth) + " CONTEXT"))
	b.WriteString("\n")

	if len(s.Rows) == 0 {
		switch {
		case s.Loading:
			b.WriteString(DimStyle.Render("loading…"))
		case s.Filter != "":
			b.WriteString(DimStyle.Render("no sessions match " + fmt.Sprintf("%q", s.Filter)))
		default:
			b.WriteString(DimStyle.Render("no sessions"))
		}
		b.WriteString("\n")
	}

	start, end := visibleWindow(len(s.Rows), s.Selected, m.height-chromeLines)
	for i := start; i < end; i++ {
		b.WriteString(renderRow(s.Rows[i], i == s.Selected, nameW, width))
		b.WriteString("\n")
	}

	if s.Err != "" {
		b.WriteString(ErrorStyle.Render(runewidth.Truncate(s.Err, width, "…")))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter(s.Mode))
	return b.String()
}

func (m *Model) renderHeader(s Snapshot) string {
	live := 0
	sessions := 0
	for _, r := range s.Rows {
		if r.IsPane() {
			continue
		}
		sessions++
		if !r.Historical {
			live++
		}
	}
	header := TitleStyle.Render("jkl") + DimStyle.Render(fmt.Sprintf("  %d sessions, %d live", sessions, live))
	if s.StoreChanged {
		header += "  " + WarningStyle.Render("● store changed on disk, press r")
	}
	return header
}

func (m *Model) renderFooter(mode Mode) string {
	var parts []string
	for _, kb := range m.keys.helpFor(mode) {
		h := kb.Help()
		parts = append(parts, MenuKeyStyle.Render(h.Key)+" "+MenuDescStyle.Render(h.Desc))
	}
	return ModeTagStyle.Render(mode.Tag()) + " " + strings.Join(parts, DimStyle.Render(" · "))
}

// nameColumnWidth fits the longest name, capped at 40% of the terminal.
func nameColumnWidth(rows []VisibleRow, width int) int {
	w := runewidth.StringWidth("SESSION")
	for _, r := range rows {
		if n := runewidth.StringWidth(rowLabel(r)); n > w {
			w = n
		}
	}
	limit := width * 2 / 5
	if limit < 12 {
		limit = 12
	}
	return min(w, limit)
}

func rowLabel(r VisibleRow) string {
	if r.IsPane() {
		label := "  └ " + r.PaneID
		if r.Detail != "" {
			label += " " + r.Detail
		}
		if r.Historical {
			label += " ~"
		}
		return label
	}

	marker := "  "
	if r.PaneCount > 0 {
		marker = "▸ "
		if r.Expanded {
			marker = "▾ "
		}
	}
	label := marker + r.Name
	if r.Historical {
		label += " ~"
	}
	return label
}

func renderRow(r VisibleRow, selected bool, nameW, width int) string {
	name := pad(rowLabel(r), nameW)
	status := pad(statusText(r.Status), statusWidth)
	ctxW := width - nameW - statusWidth - 2
	ctx := ""
	if ctxW > 0 {
		ctx = runewidth.Truncate(strings.ReplaceAll(r.Context, "\n", " "), ctxW, "…")
	}

	if selected {
		return SelectedStyle.Render(name + " " + status + " " + ctx)
	}
	if r.Historical {
		return HistoricalStyle.Render(name + " " + status + " " + ctx)
	}
	return name + " " + statusStyle(r.Status).Render(status) + " " + ctx
}

// pad truncates or right-pads s to exactly w cells.
func pad(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

// visibleWindow returns the row range to draw so that selected stays on
// screen. A non-positive height draws everything.
func visibleWindow(n, selected, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := selected - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

func (m *Model) viewPaneSelect() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Status for pane %s", m.pane.PaneID)))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("session " + m.pane.SessionName))
	b.WriteString("\n\n")

	for i, s := range store.Statuses() {
		line := "  " + string(s)
		if i == m.paneCursor {
			line = SelectedStyle.Render("› " + string(s))
		} else {
			line = statusStyle(s).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter(ModePaneStateSelect))

	box := PaneBoxStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
