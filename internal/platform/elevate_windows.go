//go:build windows

package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

type runasElevator struct{}

// NewElevator returns the elevation helper for the running OS.
func NewElevator() Elevator {
	return runasElevator{}
}

// LaunchElevated uses ShellExecute with the "runas" verb, which shows the UAC
// prompt. A refused prompt surfaces as ErrElevationCancelled.
func (runasElevator) LaunchElevated(program string, args []string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(program)
	if err != nil {
		return err
	}
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = windows.EscapeArg(a)
	}
	params, err := windows.UTF16PtrFromString(strings.Join(escaped, " "))
	if err != nil {
		return err
	}
	dir, err := windows.UTF16PtrFromString(filepath.Dir(program))
	if err != nil {
		return err
	}

	err = windows.ShellExecute(0, verb, file, params, dir, windows.SW_HIDE)
	if errors.Is(err, windows.ERROR_CANCELLED) {
		return ErrElevationCancelled
	}
	if err != nil {
		return fmt.Errorf("launch %s elevated: %w", filepath.Base(program), err)
	}
	return nil
}
