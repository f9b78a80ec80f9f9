//go:build unix

package platform

import (
	"os"
	"os/exec"
	"runtime"
)

// NewElevator returns the elevation helper for the running OS.
func NewElevator() Elevator {
	return unixElevator{
		goos:     runtime.GOOS,
		euid:     os.Geteuid,
		lookPath: exec.LookPath,
		start:    startDetachedProgram,
	}
}
