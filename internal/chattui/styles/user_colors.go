package styles

import (
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// UserColorPalette is a curated ANSI-256 palette for stable per-user
// identity colors. Red/green slots are avoided so status colors stay
// unambiguous.
var UserColorPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// UserColorMapper resolves deterministic per-user styles and caches them.
type UserColorMapper struct {
	palette []string

	mu         sync.RWMutex
	fgCache    map[int64]lipgloss.Style
	colorCache map[int64]string
}

// NewUserColorMapper returns a deterministic mapper with the given
// palette, falling back to the default one.
func NewUserColorMapper(palette []string) *UserColorMapper {
	if len(palette) == 0 {
		palette = UserColorPalette
	}
	paletteCopy := make([]string, len(palette))
	copy(paletteCopy, palette)

	return &UserColorMapper{
		palette:    paletteCopy,
		fgCache:    make(map[int64]lipgloss.Style, 16),
		colorCache: make(map[int64]string, 16),
	}
}

// Foreground returns a cached foreground style for a user id.
func (m *UserColorMapper) Foreground(userID int64) lipgloss.Style {
	m.mu.RLock()
	if style, ok := m.fgCache[userID]; ok {
		m.mu.RUnlock()
		return style
	}
	m.mu.RUnlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.ColorCode(userID))).Bold(true)

	m.mu.Lock()
	m.fgCache[userID] = style
	m.mu.Unlock()

	return style
}

// ColorCode returns the ANSI-256 color code selected for a user id.
func (m *UserColorMapper) ColorCode(userID int64) string {
	m.mu.RLock()
	if colorCode, ok := m.colorCache[userID]; ok {
		m.mu.RUnlock()
		return colorCode
	}
	m.mu.RUnlock()

	idx := hashUserToPalette(userID, len(m.palette))
	colorCode := m.palette[idx]

	m.mu.Lock()
	m.colorCache[userID] = colorCode
	m.mu.Unlock()

	return colorCode
}

func hashUserToPalette(userID int64, paletteLen int) int {
	if paletteLen == 0 {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % uint32(paletteLen))
}
