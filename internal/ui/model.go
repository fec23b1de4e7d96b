// Package ui is the interactive session list: a bubbletea model over the
// reconciled view with search, pane expansion and client switching.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jkl-dev/jkl/internal/identity"
	"github.com/jkl-dev/jkl/internal/logging"
	"github.com/jkl-dev/jkl/internal/reconcile"
	"github.com/jkl-dev/jkl/internal/store"
	"github.com/jkl-dev/jkl/internal/tmux"
)

var uiLog = logging.ForComponent(logging.CompUI)

// tmuxTimeout bounds one collector or switch call.
const tmuxTimeout = 5 * time.Second

// Switcher moves the tmux client. *tmux.Client implements it.
type Switcher interface {
	SwitchClient(ctx context.Context, target string) error
	SelectPane(ctx context.Context, paneID string) error
}

// Options configures a Model.
type Options struct {
	// Store is the already loaded store. Required.
	Store *store.Store
	// Live enumerates tmux sessions. Required for the list.
	Live reconcile.LiveStateProvider
	// Switcher is used by enter. Required for the list.
	Switcher Switcher
	// RefreshInterval enables periodic live refresh when > 0.
	RefreshInterval time.Duration
	// Watcher, when set, drives the "changed on disk" indicator.
	Watcher *StoreWatcher
	// Theme, when set, switches the palette with the OS dark mode.
	Theme *ThemeWatcher
	// LoadStore re-reads the store on refresh. Defaults to store.Load.
	LoadStore func(store.Path) (*store.Store, error)
	// Context bounds background tmux calls. Defaults to Background.
	Context context.Context
}

// PaneTarget is the pane edited in pane-state-select mode. SessionID and
// SessionCreated, when known, are recorded on the session so the rename
// hook can follow it.
type PaneTarget struct {
	SessionName    string
	SessionID      string
	SessionCreated int64
	PaneID         string
}

// VisibleRow is one line of the rendered list.
type VisibleRow struct {
	Key        identity.Key
	PaneID     string // empty for session rows
	Name       string
	Detail     string // window.pane and command for live panes
	Status     store.Status
	Context    string
	Historical bool
	Switchable bool
	Expanded   bool
	PaneCount  int
}

// IsPane reports whether the row is a pane under a session.
func (v VisibleRow) IsPane() bool { return v.PaneID != "" }

// Snapshot is everything View needs, detached from the model.
type Snapshot struct {
	Rows         []VisibleRow
	Selected     int
	Mode         Mode
	Filter       string
	Err          string
	Banner       string
	StoreChanged bool
	Loading      bool
}

type rowID struct {
	key  identity.Key
	pane string
}

// Model is the bubbletea model of the list and the pane-state selector.
type Model struct {
	keys  keyMap
	mode  Mode
	ctx   context.Context
	input textinput.Model

	st        *store.Store
	live      []tmux.Session
	rows      []reconcile.Row
	visible   []VisibleRow
	expanded  map[identity.Key]bool
	cursor    int
	selection rowID

	provider  reconcile.LiveStateProvider
	switcher  Switcher
	loadStore func(store.Path) (*store.Store, error)
	watcher   *StoreWatcher
	theme     *ThemeWatcher
	limiter   *rate.Limiter // explicit refresh
	ticks     *rate.Limiter // auto refresh, never spends limiter tokens
	interval  time.Duration
	queued    bool // an explicit refresh waits for a limiter token

	// gen counts store mutations. A refresh carries the value it was
	// dispatched with and its store part is dropped if it no longer matches.
	// The pane selector is the only writer today; any write added to the
	// list must go through mutate.
	gen uint64

	loading      bool
	liveBanner   string
	storeBanner  string
	status       string
	storeChanged bool
	width        int
	height       int

	pane       PaneTarget
	paneCursor int

	err error
}

type (
	refreshMsg struct {
		gen       uint64
		withStore bool
		live      []tmux.Session
		liveErr   error
		st        *store.Store
		stErr     error
	}
	switchDoneMsg struct {
		target string
		err    error
	}
	storeChangedMsg struct{}
	tickMsg         time.Time
	queuedRefresh   struct{}
)

func newModel(opts Options) *Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter sessions"
	ti.CharLimit = 128

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	load := opts.LoadStore
	if load == nil {
		load = store.Load
	}
	st := opts.Store
	if st == nil {
		st = store.New("")
	}

	return &Model{
		keys:      defaultKeyMap(),
		mode:      ModeNormal,
		ctx:       ctx,
		input:     ti,
		st:        st,
		expanded:  make(map[identity.Key]bool),
		provider:  opts.Live,
		switcher:  opts.Switcher,
		loadStore: load,
		watcher:   opts.Watcher,
		theme:     opts.Theme,
		limiter:   rate.NewLimiter(rate.Limit(4), 1),
		ticks:     rate.NewLimiter(rate.Limit(4), 1),
		interval:  opts.RefreshInterval,
	}
}

// New returns the session list. Rows from the store show immediately;
// live sessions arrive with the first refresh started by Init.
func New(opts Options) *Model {
	m := newModel(opts)
	m.loading = opts.Live != nil
	m.rows = reconcile.Reconcile(nil, m.st)
	m.rebuild()
	if m.watcher != nil {
		m.storeBanner = m.watcher.Warning()
	}
	return m
}

// NewPaneSelect returns the pane status selector for target. The cursor
// starts on the pane's current status when it has one.
func NewPaneSelect(opts Options, target PaneTarget) *Model {
	m := newModel(opts)
	m.mode = ModePaneStateSelect
	m.pane = target
	if rec, ok := m.st.Lookup(target.SessionName); ok {
		if p, ok := rec.Panes[target.PaneID]; ok {
			for i, s := range store.Statuses() {
				if s == p.Status {
					m.paneCursor = i
				}
			}
		}
	}
	return m
}

// Init starts the first live refresh, the store watcher and the tick.
func (m *Model) Init() tea.Cmd {
	if m.mode == ModePaneStateSelect {
		return nil
	}
	var cmds []tea.Cmd
	if m.provider != nil {
		cmds = append(cmds, m.refreshCmd(false))
	}
	if m.watcher != nil {
		cmds = append(cmds, listenForStoreChanges(m.watcher))
	}
	if m.theme != nil {
		cmds = append(cmds, listenForThemeChanges(m.theme))
	}
	if m.interval > 0 {
		cmds = append(cmds, m.tick())
	}
	return tea.Batch(cmds...)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func listenForStoreChanges(sw *StoreWatcher) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-sw.Changed(); !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// refreshCmd collects live state, and re-reads the store when withStore
// is set. It runs off the update loop.
func (m *Model) refreshCmd(withStore bool) tea.Cmd {
	gen := m.gen
	provider, load, path, parent := m.provider, m.loadStore, m.st.Path(), m.ctx
	return func() tea.Msg {
		msg := refreshMsg{gen: gen, withStore: withStore}
		if provider != nil {
			ctx, cancel := context.WithTimeout(parent, tmuxTimeout)
			msg.live, msg.liveErr = provider.ListSessions(ctx)
			cancel()
		}
		if withStore {
			msg.st, msg.stErr = load(path)
		}
		return msg
	}
}

// requestRefresh starts an explicit refresh of live state and the store.
// When the limiter says no, a single refresh is queued for the moment a
// token frees up, so the request is delayed rather than lost.
func (m *Model) requestRefresh() tea.Cmd {
	if m.limiter.Allow() {
		return m.refreshCmd(true)
	}
	m.status = "refresh throttled"
	if m.queued {
		return nil
	}
	m.queued = true
	delay := m.limiter.Reserve().Delay()
	uiLog.Debug("refresh_throttled", slog.Duration("delay", delay))
	return tea.Tick(delay, func(time.Time) tea.Msg { return queuedRefresh{} })
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-6)
		return m, nil

	case refreshMsg:
		m.applyRefresh(msg)
		return m, nil

	case tickMsg:
		if m.mode == ModeExiting {
			return m, nil
		}
		var refresh tea.Cmd
		if m.ticks.Allow() {
			refresh = m.refreshCmd(false)
		}
		return m, tea.Batch(refresh, m.tick())

	case queuedRefresh:
		// the token was reserved when the request was queued
		m.queued = false
		if m.mode == ModeExiting {
			return m, nil
		}
		if m.status == "refresh throttled" {
			m.status = ""
		}
		return m, m.refreshCmd(true)

	case storeChangedMsg:
		m.storeChanged = true
		if m.watcher == nil {
			return m, nil
		}
		return m, listenForStoreChanges(m.watcher)

	case themeChangedMsg:
		InitTheme(themeName(msg.dark))
		uiLog.Debug("theme_changed", slog.String("theme", themeName(msg.dark)))
		if m.theme == nil {
			return m, nil
		}
		return m, listenForThemeChanges(m.theme)

	case switchDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("switch to %s failed: %v", msg.target, msg.err)
			uiLog.Warn("switch_failed", slog.String("target", msg.target), slog.String("error", msg.err.Error()))
			return m, nil
		}
		return m, m.fire(EventSwitch)

	case tea.KeyMsg:
		switch m.mode {
		case ModeSearching:
			return m, m.updateSearching(msg)
		case ModePaneStateSelect:
			return m, m.updatePaneSelect(msg)
		case ModeNormal:
			return m, m.updateNormal(msg)
		}
	}
	return m, nil
}

// fire applies ev to the mode table and quits when the result is Exiting.
// Illegal events are dropped.
func (m *Model) fire(ev Event) tea.Cmd {
	to, ok := next(m.mode, ev)
	if !ok {
		return nil
	}
	if to != m.mode {
		uiLog.Debug("mode_changed", slog.String("from", m.mode.String()), slog.String("to", to.String()))
	}
	m.mode = to
	if to == ModeExiting {
		return tea.Quit
	}
	return nil
}

func (m *Model) updateNormal(msg tea.KeyMsg) tea.Cmd {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.ForceQ), key.Matches(msg, m.keys.Quit):
		return m.fire(EventQuit)

	case key.Matches(msg, m.keys.Escape):
		if m.input.Value() != "" {
			m.input.SetValue("")
			m.rebuild()
			return m.fire(EventClearFilter)
		}
		return m.fire(EventQuit)

	case key.Matches(msg, m.keys.Search):
		cmd := m.fire(EventSearch)
		return tea.Batch(cmd, m.input.Focus())

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)

	case key.Matches(msg, m.keys.Toggle):
		if row, ok := m.current(); ok {
			m.setExpanded(row.Key, !m.expanded[row.Key])
		}
	case key.Matches(msg, m.keys.Expand):
		if row, ok := m.current(); ok {
			m.setExpanded(row.Key, true)
		}
	case key.Matches(msg, m.keys.Collapse):
		if row, ok := m.current(); ok {
			m.setExpanded(row.Key, false)
		}

	case key.Matches(msg, m.keys.Refresh):
		return m.requestRefresh()

	case key.Matches(msg, m.keys.Switch):
		return m.switchSelected()
	}
	return nil
}

func (m *Model) updateSearching(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ForceQ):
		return m.fire(EventQuit)

	case key.Matches(msg, m.keys.Escape):
		m.input.SetValue("")
		m.input.Blur()
		m.rebuild()
		return m.fire(EventCancel)

	case key.Matches(msg, m.keys.Commit):
		m.input.Blur()
		return m.fire(EventCommit)

	case key.Matches(msg, m.keys.SearchUp):
		m.move(-1)
		return nil
	case key.Matches(msg, m.keys.SearchDown):
		m.move(1)
		return nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.rebuild()
	}
	return cmd
}

func (m *Model) updatePaneSelect(msg tea.KeyMsg) tea.Cmd {
	n := len(store.Statuses())
	switch {
	case key.Matches(msg, m.keys.Up):
		m.paneCursor = (m.paneCursor - 1 + n) % n
	case key.Matches(msg, m.keys.Down):
		m.paneCursor = (m.paneCursor + 1) % n
	case key.Matches(msg, m.keys.Commit):
		return m.confirmPaneStatus()
	case key.Matches(msg, m.keys.Escape):
		return m.fire(EventCancel)
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQ):
		return m.fire(EventQuit)
	}
	return nil
}

// confirmPaneStatus writes the chosen status. A failed save is reported
// through Err after the program exits.
func (m *Model) confirmPaneStatus() tea.Cmd {
	status := store.Statuses()[m.paneCursor]
	m.mutate(func(st *store.Store) {
		if m.pane.SessionID != "" {
			st.UpsertSession(m.pane.SessionName, store.UpsertOptions{
				SessionID:      m.pane.SessionID,
				SessionCreated: m.pane.SessionCreated,
			})
		}
		st.UpsertPane(m.pane.SessionName, m.pane.PaneID, store.PaneOptions{Status: &status})
	})
	if m.watcher != nil {
		m.watcher.NotifySave()
	}
	if err := m.st.Save(); err != nil {
		m.err = err
		uiLog.Error("pane_status_save_failed", slog.String("error", err.Error()))
	} else {
		uiLog.Info("pane_status_set",
			slog.String("session", m.pane.SessionName),
			slog.String("pane", m.pane.PaneID),
			slog.String("status", string(status)))
	}
	return m.fire(EventConfirm)
}

// mutate applies fn to the store and invalidates in-flight refreshes.
func (m *Model) mutate(fn func(*store.Store)) {
	fn(m.st)
	m.gen++
}

func (m *Model) applyRefresh(msg refreshMsg) {
	m.loading = false

	switch {
	case msg.liveErr == nil:
		m.live = msg.live
		m.liveBanner = ""
	case errors.Is(msg.liveErr, tmux.ErrNoServer):
		m.live = nil
		m.liveBanner = "no tmux server running: showing stored sessions only"
	default:
		m.liveBanner = "tmux: " + msg.liveErr.Error()
		uiLog.Warn("refresh_failed", slog.String("error", msg.liveErr.Error()))
	}

	if msg.withStore {
		switch {
		case msg.gen != m.gen:
			uiLog.Debug("refresh_store_stale", slog.Uint64("dispatched", msg.gen), slog.Uint64("current", m.gen))
		case msg.stErr != nil:
			m.storeBanner = "store reload failed, keeping previous data: " + msg.stErr.Error()
			uiLog.Warn("store_reload_failed", slog.String("error", msg.stErr.Error()))
		default:
			m.st = msg.st
			m.storeChanged = false
			m.storeBanner = ""
			if p := msg.st.Problems(); len(p) > 0 {
				m.storeBanner = fmt.Sprintf("store: %s (%d issue(s), see jkl edit)", p[0], len(p))
			}
		}
	}

	m.rows = reconcile.Reconcile(m.live, m.st)
	m.rebuild()
}

func (m *Model) switchSelected() tea.Cmd {
	row, ok := m.current()
	if !ok {
		return nil
	}
	if !row.Switchable {
		if row.IsPane() {
			m.status = fmt.Sprintf("pane %s no longer exists", row.PaneID)
		} else {
			m.status = fmt.Sprintf("session %q is not running", row.Name)
		}
		return nil
	}
	if m.switcher == nil {
		return nil
	}

	sessionID := m.sessionID(row.Key)
	paneID := row.PaneID
	sw, parent := m.switcher, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, tmuxTimeout)
		defer cancel()
		if err := sw.SwitchClient(ctx, sessionID); err != nil {
			return switchDoneMsg{target: sessionID, err: err}
		}
		if paneID != "" {
			if err := sw.SelectPane(ctx, paneID); err != nil {
				return switchDoneMsg{target: paneID, err: err}
			}
		}
		return switchDoneMsg{target: sessionID}
	}
}

func (m *Model) sessionID(key identity.Key) string {
	for _, r := range m.rows {
		if r.Key == key {
			return r.SessionID()
		}
	}
	return ""
}

func (m *Model) current() (VisibleRow, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return VisibleRow{}, false
	}
	return m.visible[m.cursor], true
}

// move shifts the cursor by delta, wrapping at both ends.
func (m *Model) move(delta int) {
	n := len(m.visible)
	if n == 0 {
		return
	}
	m.cursor = ((m.cursor+delta)%n + n) % n
	m.remember()
}

// setExpanded changes the expand flag of a session. Collapsing while on
// one of its panes moves the cursor to the session.
func (m *Model) setExpanded(k identity.Key, on bool) {
	if on {
		m.expanded[k] = true
	} else {
		delete(m.expanded, k)
		if m.selection.key == k {
			m.selection.pane = ""
		}
	}
	m.rebuild()
}

func (m *Model) remember() {
	if row, ok := m.current(); ok {
		m.selection = rowID{key: row.Key, pane: row.PaneID}
	}
}

// rebuild recomputes the visible rows from rows, the filter and the
// expand flags, then puts the cursor back on the remembered row, its
// session, or the nearest index.
func (m *Model) rebuild() {
	filtered := reconcile.Filter(m.rows, m.input.Value())

	visible := make([]VisibleRow, 0, len(filtered))
	for _, r := range filtered {
		exp := m.expanded[r.Key]
		visible = append(visible, VisibleRow{
			Key:        r.Key,
			Name:       r.Name,
			Status:     r.Status(),
			Context:    r.Context(),
			Historical: r.Historical(),
			Switchable: r.Switchable(),
			Expanded:   exp,
			PaneCount:  len(r.Panes),
		})
		if !exp {
			continue
		}
		for _, p := range r.Panes {
			vr := VisibleRow{
				Key:        r.Key,
				PaneID:     p.ID,
				Name:       r.Name,
				Status:     p.Status(),
				Context:    p.Context(),
				Historical: p.Historical(),
				Switchable: p.Switchable(),
			}
			if p.Live != nil {
				vr.Detail = fmt.Sprintf("%d.%d %s", p.Live.WindowIndex, p.Live.PaneIndex, p.Live.Command)
			}
			visible = append(visible, vr)
		}
	}
	m.visible = visible

	if len(visible) == 0 {
		m.cursor = 0
		return
	}
	if i := m.indexOf(m.selection); i >= 0 {
		m.cursor = i
	} else if i := m.indexOf(rowID{key: m.selection.key}); i >= 0 {
		m.cursor = i
	} else if m.cursor >= len(visible) {
		m.cursor = len(visible) - 1
	}
	m.remember()
}

func (m *Model) indexOf(id rowID) int {
	if id.key == "" {
		return -1
	}
	for i, v := range m.visible {
		if v.Key == id.key && v.PaneID == id.pane {
			return i
		}
	}
	return -1
}

// Mode returns the current mode.
func (m *Model) Mode() Mode { return m.mode }

// Store returns the store the model currently reads from.
func (m *Model) Store() *store.Store { return m.st }

// Err returns an error that should fail the command after the program
// exits, such as a failed save in the pane selector.
func (m *Model) Err() error { return m.err }

// Snapshot returns the render state.
func (m *Model) Snapshot() Snapshot {
	rows := make([]VisibleRow, len(m.visible))
	copy(rows, m.visible)
	banner := m.liveBanner
	if m.storeBanner != "" {
		if banner != "" {
			banner += "; "
		}
		banner += m.storeBanner
	}
	return Snapshot{
		Rows:         rows,
		Selected:     m.cursor,
		Mode:         m.mode,
		Filter:       m.input.Value(),
		Err:          m.status,
		Banner:       banner,
		StoreChanged: m.storeChanged,
		Loading:      m.loading,
	}
}
