package consent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"carelite/internal/update"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI is the full-screen terminal prompt.
type TUI struct {
	in     io.Reader
	out    io.Writer
	render func(int) func(string) string
	clip   func(string) error
}

// NewTUI creates a bubbletea prompter reading keys from in and drawing to out.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	return &TUI{in: in, out: out, render: markdownRenderer, clip: clipboard.WriteAll}
}

// Confirm implements update.Prompter. Cancelling ctx closes the prompt and
// counts as "Later".
func (t *TUI) Confirm(ctx context.Context, offer update.Offer) (bool, error) {
	final, err := t.run(ctx, newPromptModel(offer, t.render), tea.WithAltScreen())
	if err != nil {
		return false, err
	}
	m, ok := final.(*promptModel)
	if !ok || !m.decided {
		return false, nil
	}
	return m.approved, nil
}

// Notify implements update.Prompter.
func (t *TUI) Notify(ctx context.Context, notice update.Notice) {
	_, _ = t.run(ctx, newNoticeModel(notice, t.clip))
}

func (t *TUI) run(ctx context.Context, model tea.Model, opts ...tea.ProgramOption) (tea.Model, error) {
	opts = append(opts,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
		tea.WithoutSignalHandler(),
	)
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return final, ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return final, context.Canceled
		}
		return final, fmt.Errorf("consent prompt: %w", err)
	}
	return final, nil
}
