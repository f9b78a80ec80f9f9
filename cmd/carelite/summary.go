package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"carelite/internal/history"
	"carelite/internal/update"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	dimColor     = lipgloss.Color("#6272A4")
	textColor    = lipgloss.Color("#F8F8F2")
	successColor = lipgloss.Color("#50FA7B")
	errorColor   = lipgloss.Color("#FF5555")
	neutralColor = lipgloss.Color("#8BE9FD")
)

var (
	appStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	dimStyle    = lipgloss.NewStyle().Foreground(dimColor)
	textStyle   = lipgloss.NewStyle().Foreground(textColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).PaddingRight(2)
	cellStyle   = lipgloss.NewStyle().Foreground(textColor).PaddingRight(2)
)

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case update.OutcomeHandedOff.String():
		return cellStyle.Foreground(successColor)
	case update.OutcomeFailed.String():
		return cellStyle.Foreground(errorColor)
	case update.OutcomeDeclined.String():
		return cellStyle.Foreground(neutralColor)
	default:
		return cellStyle
	}
}

// printResult prints the outcome of a one-shot check.
func printResult(w io.Writer, res update.Result, logPath string) {
	var line string
	switch res.Outcome {
	case update.OutcomeUpToDate:
		line = fmt.Sprintf("CareLite %s is up to date.", res.Current)
	case update.OutcomeDeclined:
		line = fmt.Sprintf("Update to %s postponed.", res.Latest)
	case update.OutcomeHandedOff:
		line = fmt.Sprintf("Installing %s; CareLite will restart.", res.Latest)
	case update.OutcomeSkipped:
		line = "Development build; update checks are disabled."
	case update.OutcomeBusy:
		line = "An update check is already running."
	case update.OutcomeFailed:
		line = "Update check failed."
		if logPath != "" {
			line += " Details: " + logPath
		}
	}
	if line != "" {
		_, _ = fmt.Fprintln(w, outcomeStyle(res.Outcome.String()).UnsetPaddingRight().Render(line))
	}
}

// historyReport is what the history command renders.
type historyReport struct {
	Version   string
	Entries   []history.Entry
	LastCheck time.Time
	Checked   bool
	Now       time.Time
}

// printHistory prints the last check time followed by a table of sessions,
// newest first.
func printHistory(w io.Writer, r historyReport) {
	header := appStyle.Render("CareLite")
	if r.Version != "" {
		header += dimStyle.Render(fmt.Sprintf(" v%s", r.Version))
	}
	if r.Checked {
		header += dimStyle.Render(fmt.Sprintf(" • last checked %s ago", formatDuration(r.Now.Sub(r.LastCheck))))
	} else {
		header += dimStyle.Render(" • never checked")
	}
	_, _ = fmt.Fprintln(w, header)

	if len(r.Entries) == 0 {
		_, _ = fmt.Fprintln(w, textStyle.Render("No update sessions recorded."))
		return
	}

	rows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		rows = append(rows, []string{
			e.Started.Local().Format("2006-01-02 15:04"),
			e.Outcome,
			versionSpan(e.Current, e.Latest),
			formatDuration(e.Finished.Sub(e.Started)),
			detail(e),
		})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("STARTED", "OUTCOME", "VERSION", "TOOK", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return outcomeStyle(rows[row][1])
			}
			return cellStyle
		}).
		Rows(rows...)

	_, _ = fmt.Fprintln(w, strings.TrimPrefix(t.String(), "\n"))
}

func versionSpan(current, latest string) string {
	switch {
	case current == "" && latest == "":
		return "-"
	case latest == "" || latest == current:
		return current
	default:
		return current + " → " + latest
	}
}

func detail(e history.Entry) string {
	if e.Error == "" {
		return ""
	}
	msg := e.Error
	if e.ErrorCode != "" {
		msg = e.ErrorCode + ": " + msg
	}
	const maxDetail = 60
	if r := []rune(msg); len(r) > maxDetail {
		msg = string(r[:maxDetail-1]) + "…"
	}
	return msg
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	if d < 48*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
