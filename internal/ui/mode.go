package ui

// Mode is the input mode of the list.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearching
	ModePaneStateSelect
	ModeExiting
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeSearching:
		return "searching"
	case ModePaneStateSelect:
		return "pane-state-select"
	case ModeExiting:
		return "exiting"
	}
	return "unknown"
}

// Tag is the short label shown in the footer.
func (m Mode) Tag() string {
	switch m {
	case ModeSearching:
		return "[SEARCH]"
	case ModePaneStateSelect:
		return "[PANE]"
	default:
		return "[NORM]"
	}
}

// Event is a mode-changing user intent.
type Event int

const (
	EventSearch      Event = iota // open the search bar
	EventCancel                   // leave search, clearing the filter
	EventClearFilter              // drop an active filter without leaving Normal
	EventCommit                   // leave search, keeping the filter
	EventQuit
	EventSwitch  // switched the tmux client
	EventConfirm // pane status written
)

type transition struct {
	from  Mode
	event Event
}

// transitions lists every legal mode change. Anything else is ignored.
var transitions = map[transition]Mode{
	{ModeNormal, EventSearch}:      ModeSearching,
	{ModeNormal, EventClearFilter}: ModeNormal,
	{ModeNormal, EventSwitch}:      ModeExiting,
	{ModeNormal, EventQuit}:        ModeExiting,

	{ModeSearching, EventCommit}: ModeNormal,
	{ModeSearching, EventCancel}: ModeNormal,
	{ModeSearching, EventQuit}:   ModeExiting,

	{ModePaneStateSelect, EventConfirm}: ModeExiting,
	{ModePaneStateSelect, EventCancel}:  ModeExiting,
	{ModePaneStateSelect, EventQuit}:    ModeExiting,
}

// next returns the mode after ev, and false when ev is not legal in from.
func next(from Mode, ev Event) (Mode, bool) {
	to, ok := transitions[transition{from, ev}]
	return to, ok
}
