package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jkl-dev/jkl/internal/store"
)

func TestInitThemeSwitchesPalette(t *testing.T) {
	t.Cleanup(func() { InitTheme("dark") })

	InitTheme("light")
	assert.Equal(t, ThemeLight, GetCurrentTheme())
	assert.Equal(t, lightColors.Accent, ColorAccent)

	InitTheme("anything else")
	assert.Equal(t, ThemeDark, GetCurrentTheme())
	assert.Equal(t, darkColors.Accent, ColorAccent)
}

func TestPalettesDefineEveryColor(t *testing.T) {
	for name, p := range map[string]palette{"dark": darkColors, "light": lightColors} {
		for _, c := range []string{string(p.Bg), string(p.Border), string(p.Text), string(p.TextDim),
			string(p.Accent), string(p.Green), string(p.Yellow), string(p.Red), string(p.Cyan)} {
			assert.NotEmpty(t, c, name)
		}
	}
}

func TestStatusStyleClasses(t *testing.T) {
	InitTheme("dark")
	assert.Equal(t, StatusDoneStyle.GetForeground(), statusStyle(store.StatusDone).GetForeground())
	assert.Equal(t, StatusWorkingStyle.GetForeground(), statusStyle(store.StatusWorking).GetForeground())
	// waiting and idle share the attention color
	assert.Equal(t, statusStyle(store.StatusWaiting).GetForeground(), statusStyle(store.StatusIdle).GetForeground())
	assert.Equal(t, StatusAbsentStyle.GetForeground(), statusStyle(store.StatusNone).GetForeground())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "-", statusText(store.StatusNone))
	assert.Equal(t, "idle", statusText(store.StatusIdle))
}

func TestThemeChangedMessage(t *testing.T) {
	t.Cleanup(func() { InitTheme("dark") })
	f := newFixture(t, nil, nil)

	_, cmd := f.m.Update(themeChangedMsg{dark: false})
	assert.Nil(t, cmd)
	assert.Equal(t, ThemeLight, GetCurrentTheme())

	f.m.Update(themeChangedMsg{dark: true})
	assert.Equal(t, ThemeDark, GetCurrentTheme())
}
