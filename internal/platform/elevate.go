package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Elevator launches a program with administrative rights, detached from the
// caller. It returns once the program has been started; it never waits for it.
type Elevator interface {
	LaunchElevated(program string, args []string) error
}

// unixElevator chooses between running directly (already root), pkexec,
// osascript on macOS and sudo.
type unixElevator struct {
	goos     string
	euid     func() int
	lookPath func(string) (string, error)
	start    func(program string, args []string) error
}

func (e unixElevator) LaunchElevated(program string, args []string) error {
	name, argv, err := e.command(program, args)
	if err != nil {
		return err
	}
	return e.start(name, argv)
}

func (e unixElevator) command(program string, args []string) (string, []string, error) {
	if e.euid() == 0 {
		return program, args, nil
	}
	if _, err := e.lookPath("pkexec"); err == nil {
		return "pkexec", append([]string{program}, args...), nil
	}
	if e.goos == "darwin" {
		if _, err := e.lookPath("osascript"); err == nil {
			script := fmt.Sprintf("do shell script %s with administrator privileges",
				appleScriptString(shellJoin(append([]string{program}, args...))))
			return "osascript", []string{"-e", script}, nil
		}
	}
	if _, err := e.lookPath("sudo"); err == nil {
		return "sudo", append([]string{"-n", program}, args...), nil
	}
	return "", nil, fmt.Errorf("%w: no pkexec, osascript or sudo available", ErrElevationCancelled)
}

// shellJoin renders argv as a POSIX shell command line.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func startDetachedProgram(program string, args []string) error {
	_, err := StartDetached(program, args, nil)
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrElevationCancelled, err)
	}
	return err
}
