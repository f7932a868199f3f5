// Package view renders the console's screens as styled text.
package view

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"gwi.com/assistant-console/internal/store"
)

// Palette is the set of colors one theme uses.
type Palette struct {
	Primary   color.Color
	Secondary color.Color
	Success   color.Color
	Warning   color.Color
	Error     color.Color
	Text      color.Color
	TextMuted color.Color
	Border    color.Color
}

var (
	lightPalette = Palette{
		Primary:   lipgloss.Color("#5271FF"), // Blue
		Secondary: lipgloss.Color("#FF615A"), // Coral
		Success:   lipgloss.Color("#38C976"),
		Warning:   lipgloss.Color("#FFAC33"),
		Error:     lipgloss.Color("#FF5A5A"),
		Text:      lipgloss.Color("#2A2F45"),
		TextMuted: lipgloss.Color("#5F647E"),
		Border:    lipgloss.Color("#D5DAEB"),
	}
	darkPalette = Palette{
		Primary:   lipgloss.Color("#7A93FF"),
		Secondary: lipgloss.Color("#FF8A85"),
		Success:   lipgloss.Color("#38C976"),
		Warning:   lipgloss.Color("#FFAC33"),
		Error:     lipgloss.Color("#FF5A5A"),
		Text:      lipgloss.Color("#E6E9F4"),
		TextMuted: lipgloss.Color("#A0A7C4"),
		Border:    lipgloss.Color("#2E3447"),
	}
)

// Styles holds the lipgloss styles for one theme.
type Styles struct {
	Palette Palette

	Title     lipgloss.Style
	Section   lipgloss.Style
	Item      lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Pending   lipgloss.Style
	Failed    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Panel     lipgloss.Style
}

// NewStyles builds the styles for theme; anything but dark is light.
func NewStyles(theme store.Theme) Styles {
	p := lightPalette
	if theme == store.ThemeDark {
		p = darkPalette
	}
	return Styles{
		Palette: p,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.TextMuted).
			MarginTop(1),
		Item: lipgloss.NewStyle().
			Foreground(p.Text).
			PaddingLeft(2),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary).
			PaddingLeft(2),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		User:      lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(p.Secondary),
		Pending:   lipgloss.NewStyle().Italic(true).Foreground(p.TextMuted),
		Failed:    lipgloss.NewStyle().Bold(true).Foreground(p.Error),
		Success:   lipgloss.NewStyle().Foreground(p.Success),
		Warning:   lipgloss.NewStyle().Foreground(p.Warning),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(p.Error),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
	}
}

// confidenceStyle picks green above 0.8, amber above 0.6, red otherwise.
func (s Styles) confidenceStyle(confidence float64) lipgloss.Style {
	switch {
	case confidence > 0.8:
		return s.Success
	case confidence > 0.6:
		return s.Warning
	default:
		return s.Error
	}
}
