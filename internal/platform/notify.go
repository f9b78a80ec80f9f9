package platform

import (
	"fmt"
	"os/exec"
)

// Notifier shows a desktop notification outside of any terminal UI.
type Notifier interface {
	Notify(title, message string) error
}

// commandNotifier shells out to notify-send or osascript.
type commandNotifier struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
}

func (n commandNotifier) Notify(title, message string) error {
	name, args, err := n.command(title, message)
	if err != nil {
		return err
	}
	return n.run(name, args...)
}

func (n commandNotifier) command(title, message string) (string, []string, error) {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(message), appleScriptString(title))
		return "osascript", []string{"-e", script}, nil
	case "windows":
		return "", nil, ErrUnsupported
	default:
		if _, err := n.lookPath("notify-send"); err != nil {
			return "", nil, fmt.Errorf("%w: notify-send not found", ErrUnsupported)
		}
		return "notify-send", []string{"--app-name", "CareLite", title, message}, nil
	}
}

func runCommand(name string, args ...string) error {
	//nolint:gosec // G204: fixed notification helpers
	return exec.Command(name, args...).Run()
}
