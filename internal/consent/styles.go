package consent

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	accentColor  = lipgloss.Color("#FF79C6")
	dimColor     = lipgloss.Color("#6272A4")
	textColor    = lipgloss.Color("#F8F8F2")
	errorColor   = lipgloss.Color("#FF5555")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(textColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	notesStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(0, 1)

	buttonStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Padding(0, 2).
			MarginRight(2)

	activeButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(primaryColor).
				Bold(true)

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor).
			MarginBottom(1)

	hintStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	flashStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

// markdownRenderer renders release notes for a terminal of the given width,
// falling back to plain word wrapping when glamour cannot be set up.
func markdownRenderer(width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
