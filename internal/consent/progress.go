package consent

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// progressModel shows a spinner until the download size is known, then a bar.
type progressModel struct {
	spinner  spinner.Model
	progress progress.Model

	label   string
	written int64
	total   int64
	done    bool

	updates chan progressUpdate
	quit    chan struct{}
}

type progressUpdate struct {
	written int64
	total   int64
	done    bool
}

type progressMsg progressUpdate

func newProgressModel(label string) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = flashStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &progressModel{
		spinner:  s,
		progress: p,
		label:    label,
		total:    -1,
		updates:  make(chan progressUpdate, 16),
		quit:     make(chan struct{}),
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m *progressModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.updates:
			return progressMsg(u)
		case <-m.quit:
			return nil
		}
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.written = msg.written
		m.total = msg.total
		if msg.done {
			m.done = true
			return m, tea.Quit
		}
		cmds := []tea.Cmd{m.waitForUpdate()}
		if m.total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(m.written)/float64(m.total)))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.progress.Update(msg)
		m.progress = model.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	if m.total > 0 {
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(fmt.Sprintf("%s %s / %s", m.label,
			humanize.Bytes(uint64(m.written)), humanize.Bytes(uint64(m.total)))))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(messageStyle.Render(fmt.Sprintf("%s %s", m.label, humanize.Bytes(uint64(max(m.written, 0))))))
	}
	return containerStyle.Render(b.String())
}

func (m *progressModel) send(u progressUpdate) {
	select {
	case m.updates <- u:
	default:
		// Drop intermediate updates when the view is behind.
	}
}

// DownloadDisplay renders download progress inline while an update is staged.
type DownloadDisplay struct {
	program *tea.Program
	model   *progressModel
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewDownloadDisplay starts an inline progress view on w.
func NewDownloadDisplay(w io.Writer, label string) *DownloadDisplay {
	model := newProgressModel(label)
	program := tea.NewProgram(
		model,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	d := &DownloadDisplay{
		program: program,
		model:   model,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(d.done)
	}()
	return d
}

// Report matches update.ProgressFunc.
func (d *DownloadDisplay) Report(written, total int64) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.send(progressUpdate{written: written, total: total})
}

// Stop removes the progress view.
func (d *DownloadDisplay) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()
	defer close(d.model.quit)

	// The done update must not be dropped.
	timeout := time.After(500 * time.Millisecond)
	select {
	case d.model.updates <- progressUpdate{done: true}:
	case <-d.done:
		return
	case <-timeout:
		d.program.Kill()
		return
	}
	select {
	case <-d.done:
	case <-timeout:
		d.program.Kill()
	}
}
