//go:build unix

package platform

import (
	"os/exec"
	"runtime"
)

// NewNotifier returns the desktop notifier for the running OS.
func NewNotifier(string) Notifier {
	return commandNotifier{goos: runtime.GOOS, lookPath: exec.LookPath, run: runCommand}
}
