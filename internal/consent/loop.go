// Package consent asks the user whether to install an update and shows update
// failures, either in a bubbletea view or on a plain line-oriented stream.
package consent

import (
	"context"
	"errors"
	"os"

	"carelite/internal/update"

	"github.com/mattn/go-isatty"
)

// ErrLoopStopped is returned by Confirm when the loop is not serving prompts.
var ErrLoopStopped = errors.New("consent loop stopped")

// New picks the bubbletea prompt when both streams are terminals and the line
// prompt otherwise.
func New(in *os.File, out *os.File) update.Prompter {
	if IsTerminal(in) && IsTerminal(out) {
		return NewTUI(in, out)
	}
	return NewLinePrompter(in, out)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewProgressFunc returns a download progress reporter for out and a func that
// removes it. Non-terminals get no progress output.
func NewProgressFunc(out *os.File, label string) (update.ProgressFunc, func()) {
	if !IsTerminal(out) {
		return nil, func() {}
	}
	var display *DownloadDisplay
	report := func(written, total int64) {
		if display == nil {
			display = NewDownloadDisplay(out, label)
		}
		display.Report(written, total)
	}
	return report, func() { display.Stop() }
}

type request struct {
	ctx    context.Context
	offer  *update.Offer
	notice *update.Notice
	reply  chan reply
}

type reply struct {
	approved bool
	err      error
}

// Loop serializes prompts from background sessions onto the goroutine that
// owns the terminal. Confirm and Notify may be called from any goroutine; they
// block until Run has served them.
type Loop struct {
	prompter update.Prompter
	requests chan request
	stopped  chan struct{}
}

// NewLoop wraps prompter.
func NewLoop(prompter update.Prompter) *Loop {
	return &Loop{
		prompter: prompter,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// Run serves prompts until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-l.requests:
			var r reply
			switch {
			case req.offer != nil:
				r.approved, r.err = l.prompter.Confirm(req.ctx, *req.offer)
			case req.notice != nil:
				l.prompter.Notify(req.ctx, *req.notice)
			}
			req.reply <- r
		}
	}
}

// Confirm implements update.Prompter.
func (l *Loop) Confirm(ctx context.Context, offer update.Offer) (bool, error) {
	r, err := l.submit(ctx, request{offer: &offer})
	if err != nil {
		return false, err
	}
	return r.approved, r.err
}

// Notify implements update.Prompter.
func (l *Loop) Notify(ctx context.Context, notice update.Notice) {
	_, _ = l.submit(ctx, request{notice: &notice})
}

func (l *Loop) submit(ctx context.Context, req request) (reply, error) {
	req.ctx = ctx
	req.reply = make(chan reply, 1)
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-l.stopped:
		return reply{}, ErrLoopStopped
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-l.stopped:
		return reply{}, ErrLoopStopped
	}
}
