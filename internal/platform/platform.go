// Package platform isolates the operating-system specific parts of the updater:
// exclusive file creation, detached and elevated process launch, waiting for a
// process to exit, startup registration, desktop notifications and rendering of
// the installer script.
package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrElevationCancelled is returned when the user refuses an elevation prompt.
var ErrElevationCancelled = errors.New("elevation was refused")

// ErrUnsupported is returned by capabilities that have no implementation for
// the running OS.
var ErrUnsupported = errors.New("not supported on this platform")

// StartDetached starts program in its own session/process group with no
// standard streams, and releases it so the caller may exit immediately.
func StartDetached(program string, args []string, env []string) (int, error) {
	cmd := exec.Command(program, args...) //nolint:gosec // program is the staged or installed executable
	cmd.Dir = filepath.Dir(program)
	if env != nil {
		cmd.Env = env
	}
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", filepath.Base(program), err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// writeFileAtomic writes data to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	//nolint:gosec // G301: startup entry directories need standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
