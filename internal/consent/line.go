package consent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"carelite/internal/update"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// LinePrompter asks on a plain line-oriented stream. It is used when stdin or
// stdout is not a terminal; end of input counts as "Later".
type LinePrompter struct {
	out   *termenv.Output
	raw   io.Writer
	in    io.Reader
	width int

	once  sync.Once
	lines chan inputLine
}

// inputLine is a line of input and when it was read.
type inputLine struct {
	text string
	at   time.Time
}

// NewLinePrompter creates a prompter reading answers from in.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{
		out:   termenv.NewOutput(out),
		raw:   out,
		in:    in,
		width: defaultWidth,
	}
}

// Confirm implements update.Prompter.
func (p *LinePrompter) Confirm(ctx context.Context, offer update.Offer) (bool, error) {
	notes := ansi.Strip(offer.Notes)
	if strings.TrimSpace(notes) == "" {
		notes = update.DefaultNotes
	}

	var b strings.Builder
	b.WriteString(p.out.String(OfferMessage(offer)).Bold().String())
	b.WriteString("\n\n")
	b.WriteString(p.out.String("Release Notes:").Italic().String())
	b.WriteString("\n")
	b.WriteString(indent.String(wordwrap.String(strings.TrimSpace(notes), p.width-2), 2))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "[U] %s  [L] %s ? ", UpdateNowLabel, LaterLabel)
	asked := time.Now()
	if _, err := io.WriteString(p.raw, b.String()); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	line, err := p.readLine(ctx, asked)
	if err != nil {
		_, _ = io.WriteString(p.raw, "\n")
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return parseAnswer(line), nil
}

// Notify implements update.Prompter.
func (p *LinePrompter) Notify(_ context.Context, notice update.Notice) {
	title := notice.Title
	if title == "" {
		title = "Update failed"
	}
	var b strings.Builder
	b.WriteString(p.out.String(title).Bold().Foreground(p.out.Color("9")).String())
	b.WriteString("\n")
	b.WriteString(wordwrap.String(ansi.Strip(notice.Message), p.width))
	b.WriteString("\n")
	if notice.LogPath != "" {
		fmt.Fprintf(&b, "Details were written to %s\n", notice.LogPath)
	}
	_, _ = io.WriteString(p.raw, b.String())
}

// readLine returns the first line read after since. Lines typed while no
// prompt was showing, such as a late answer to a timed out prompt, are
// dropped.
func (p *LinePrompter) readLine(ctx context.Context, since time.Time) (string, error) {
	p.once.Do(func() {
		p.lines = make(chan inputLine)
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- inputLine{text: scanner.Text(), at: time.Now()}
			}
		}()
	})
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-p.lines:
			if !ok {
				return "", io.EOF
			}
			if line.at.Before(since) {
				continue
			}
			return line.text, nil
		}
	}
}

func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "u", "y", "yes", "update", "update now":
		return true
	default:
		return false
	}
}
