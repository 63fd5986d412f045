package styles

import "github.com/charmbracelet/lipgloss"

// BaseColors defines global UI colors.
type BaseColors struct {
	Background string
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// MessageColors defines colors for message rows.
type MessageColors struct {
	Own       string
	Other     string
	Tombstone string
	EditedTag string
}

// StatusColors defines colors for presence and delivery state.
type StatusColors struct {
	Online   string
	Typing   string
	ReadTick string
	SentTick string
	Error    string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header       string
	Footer       string
	SelectedItem string
	UnreadBadge  string
	Separator    string
}

// Theme defines the parley TUI style tokens.
type Theme struct {
	Name        string
	UserPalette []string // ANSI-256 codes for per-user identity colors

	Base    BaseColors
	Message MessageColors
	Status  StatusColors
	Chrome  ChromeColors
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"dark":  DarkTheme,
	"light": LightTheme,
}

// ForName returns the named theme, falling back to dark.
func ForName(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DarkTheme
}

func (t Theme) BaseStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Foreground))
}

func (t Theme) MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Muted))
}

func (t Theme) AccentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Accent))
}

func (t Theme) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Status.Error))
}
