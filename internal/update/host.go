package update

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Host describes the running program: its version identifier, the executable
// that would be replaced and where an elevated install should land.
type Host struct {
	Version    string
	Executable string
	InstallDir string
	PID        int
}

// DetectHost resolves the current executable (following symlinks) and
// combines it with the build version and configured install directory.
// An empty installDir falls back to the executable's directory.
func DetectHost(version, installDir string) (Host, error) {
	execPath, err := os.Executable()
	if err != nil {
		return Host{}, fmt.Errorf("get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	if strings.TrimSpace(installDir) == "" {
		installDir = filepath.Dir(execPath)
	}
	return Host{
		Version:    version,
		Executable: execPath,
		InstallDir: installDir,
		PID:        os.Getpid(),
	}, nil
}

// ExecutableName is the file name of the running executable.
func (h Host) ExecutableName() string {
	return filepath.Base(h.Executable)
}

// Banner is the environment line logged at the start of every session.
func (h Host) Banner() string {
	return fmt.Sprintf("version=%s os=%s arch=%s 64bit=%s pid=%d exe=%s",
		h.Version, runtime.GOOS, runtime.GOARCH,
		strconv.FormatBool(strconv.IntSize == 64), h.PID, h.Executable)
}
