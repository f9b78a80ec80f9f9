package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carelite/internal/platform"
)

const (
	// StagedPrefix starts the name of every staged binary.
	StagedPrefix = "update_"
	// PartialSuffix marks a download still in flight.
	PartialSuffix = ".partial"

	stampLayout = "20060102150405"
)

// Staging is the private directory downloads land in before replacement.
type Staging struct {
	Dir string
	now func() time.Time
}

// NewStaging returns a staging area rooted at dir.
func NewStaging(dir string) *Staging {
	return &Staging{Dir: dir, now: time.Now}
}

// Ensure creates the staging directory if it is missing.
func (s *Staging) Ensure() error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return ioError("create staging directory", err)
	}
	return nil
}

// FileName returns the staged file name for version, e.g.
// update_2.1.0_20240131093000.exe.
func (s *Staging) FileName(version Version, ext string) string {
	return fmt.Sprintf("%s%s_%s%s", StagedPrefix, version.String(), s.now().Format(stampLayout), ext)
}

// ScriptLogPath is where the installer script writes its own log.
func (s *Staging) ScriptLogPath() string {
	return filepath.Join(s.Dir, platform.ScriptLogName)
}

// Sweep removes staged binaries, partial downloads and installer scripts left
// behind by earlier attempts. Files that cannot be removed (for example a
// helper still running from them) are skipped. The script log is kept.
func (s *Staging) Sweep() (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, ioError("read staging directory", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isStale(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func isStale(name string) bool {
	switch {
	case name == platform.ScriptLogName:
		return false
	case strings.HasPrefix(name, StagedPrefix):
		return true
	case strings.HasSuffix(name, PartialSuffix):
		return true
	case name == platform.ScriptFileName("windows"), name == platform.ScriptFileName("linux"):
		return true
	}
	return false
}

// uniquePath returns dir/name, or dir/<stem>-N<ext> when that already exists.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}
