package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jkl-dev/jkl/internal/store"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// currentTheme holds the active theme (set at init)
var currentTheme = ThemeDark

type palette struct {
	Bg, Border, Text, TextDim lipgloss.Color
	Accent, Green, Yellow     lipgloss.Color
	Red, Cyan                 lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Cyan:    lipgloss.Color("#7dcfff"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Cyan:    lipgloss.Color("#166775"),
}

// Active colors (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorCyan    lipgloss.Color
)

var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()

	p := darkColors
	currentTheme = ThemeDark
	if theme == "light" {
		p = lightColors
		currentTheme = ThemeLight
	}
	ColorBg = p.Bg
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorRed = p.Red
	ColorCyan = p.Cyan

	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

var (
	TitleStyle      lipgloss.Style
	HeaderStyle     lipgloss.Style
	DimStyle        lipgloss.Style
	ErrorStyle      lipgloss.Style
	WarningStyle    lipgloss.Style
	SelectedStyle   lipgloss.Style
	HistoricalStyle lipgloss.Style

	SearchPromptStyle lipgloss.Style
	SearchBoxStyle    lipgloss.Style

	MenuKeyStyle  lipgloss.Style
	MenuDescStyle lipgloss.Style
	ModeTagStyle  lipgloss.Style

	StatusDoneStyle      lipgloss.Style
	StatusWorkingStyle   lipgloss.Style
	StatusAttentionStyle lipgloss.Style
	StatusAbsentStyle    lipgloss.Style

	PaneBoxStyle lipgloss.Style
)

func initStyles() {
	TitleStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	HeaderStyle = lipgloss.NewStyle().Foreground(ColorTextDim).Bold(true)
	DimStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	SelectedStyle = lipgloss.NewStyle().Background(ColorAccent).Foreground(ColorBg).Bold(true)
	HistoricalStyle = lipgloss.NewStyle().Foreground(ColorTextDim).Italic(true)

	SearchPromptStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	MenuDescStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ModeTagStyle = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorCyan).Bold(true).Padding(0, 1)

	StatusDoneStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	StatusWorkingStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	StatusAttentionStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StatusAbsentStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	PaneBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(1, 2)
}

// statusStyle returns the style a status is rendered with. waiting and
// idle share one class.
func statusStyle(s store.Status) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch {
	case s == store.StatusDone:
		return StatusDoneStyle
	case s == store.StatusWorking:
		return StatusWorkingStyle
	case s.NeedsAttention():
		return StatusAttentionStyle
	default:
		return StatusAbsentStyle
	}
}

// statusText renders an absent status as "-".
func statusText(s store.Status) string {
	if s == store.StatusNone {
		return "-"
	}
	return string(s)
}
