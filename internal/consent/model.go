package consent

import (
	"fmt"
	"strings"

	"carelite/internal/update"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// UpdateNowLabel and LaterLabel are the two answers offered to the user.
	UpdateNowLabel = "Update Now"
	LaterLabel     = "Later"

	defaultWidth  = 72
	defaultHeight = 24
	notesChrome   = 12
	minNotes      = 3
)

// OfferMessage is the sentence shown above the release notes.
func OfferMessage(offer update.Offer) string {
	return fmt.Sprintf("A new version %s is available! Current version: %s.", offer.Latest, offer.Current)
}

// promptModel asks a single yes/no question about an offer.
type promptModel struct {
	offer    update.Offer
	notes    viewport.Model
	render   func(width int) func(string) string
	selected int // 0 = Update Now, 1 = Later

	width  int
	height int

	decided  bool
	approved bool
}

func newPromptModel(offer update.Offer, render func(int) func(string) string) *promptModel {
	if render == nil {
		render = markdownRenderer
	}
	m := &promptModel{
		offer:  offer,
		render: render,
		width:  defaultWidth,
		height: defaultHeight,
	}
	m.notes = viewport.New(m.notesWidth(), m.notesHeight())
	m.refreshNotes()
	return m
}

func (m *promptModel) notesWidth() int {
	w := m.width - 8
	if w < 20 {
		w = 20
	}
	return w
}

func (m *promptModel) notesHeight() int {
	h := m.height - notesChrome
	if h < minNotes {
		h = minNotes
	}
	return h
}

func (m *promptModel) refreshNotes() {
	m.notes.Width = m.notesWidth()
	m.notes.Height = m.notesHeight()
	notes := m.offer.Notes
	if strings.TrimSpace(notes) == "" {
		notes = update.DefaultNotes
	}
	m.notes.SetContent(m.render(m.notes.Width)(notes))
}

func (m *promptModel) Init() tea.Cmd {
	return nil
}

func (m *promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refreshNotes()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "right", "tab", "shift+tab", "h", "l":
			m.selected = 1 - m.selected
			return m, nil
		case "enter", " ":
			return m.decide(m.selected == 0)
		case "y", "u":
			return m.decide(true)
		case "n", "esc", "q", "ctrl+c":
			return m.decide(false)
		}
	}

	var cmd tea.Cmd
	m.notes, cmd = m.notes.Update(msg)
	return m, cmd
}

func (m *promptModel) decide(approved bool) (tea.Model, tea.Cmd) {
	m.decided = true
	m.approved = approved
	return m, tea.Quit
}

func (m *promptModel) View() string {
	if m.decided {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("CareLite Update"))
	b.WriteString("\n")
	b.WriteString(messageStyle.Render(OfferMessage(m.offer)))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Release Notes:"))
	b.WriteString("\n")
	b.WriteString(notesStyle.Render(m.notes.View()))
	b.WriteString("\n\n")

	buttons := []string{UpdateNowLabel, LaterLabel}
	for i, label := range buttons {
		style := buttonStyle
		if i == m.selected {
			style = activeButtonStyle
		}
		b.WriteString(style.Render(label))
	}
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("←/→ choose • enter confirm • ↑/↓ scroll notes • esc later"))
	return containerStyle.Render(b.String())
}

// noticeModel shows a failure until dismissed. The log path can be copied.
type noticeModel struct {
	notice update.Notice
	clip   func(string) error
	flash  string
	closed bool
	width  int
}

func newNoticeModel(notice update.Notice, copyFn func(string) error) *noticeModel {
	return &noticeModel{notice: notice, clip: copyFn, width: defaultWidth}
}

func (m *noticeModel) Init() tea.Cmd {
	return nil
}

func (m *noticeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			if m.notice.LogPath == "" || m.clip == nil {
				return m, nil
			}
			if err := m.clip(m.notice.LogPath); err != nil {
				m.flash = "Could not copy to clipboard: " + err.Error()
			} else {
				m.flash = fmt.Sprintf("Copied '%s' to clipboard.", m.notice.LogPath)
			}
			return m, nil
		case "enter", "esc", "q", "ctrl+c", " ":
			m.closed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *noticeModel) View() string {
	if m.closed {
		return ""
	}
	title := m.notice.Title
	if title == "" {
		title = "Update failed"
	}
	width := m.width - 6
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(errorTitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(messageStyle.Width(width).Render(m.notice.Message))
	b.WriteString("\n")
	if m.notice.LogPath != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Details were written to " + m.notice.LogPath))
		b.WriteString("\n")
	}
	if m.flash != "" {
		b.WriteString(flashStyle.Render(m.flash))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	hint := "enter close"
	if m.notice.LogPath != "" {
		hint = "c copy log path • " + hint
	}
	b.WriteString(hintStyle.Render(hint))
	return containerStyle.Render(b.String())
}
