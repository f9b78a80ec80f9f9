package update

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestStagingFileName(t *testing.T) {
	s := NewStaging(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC) }

	if got := s.FileName(mustParse(t, "v2.1.0"), ".exe"); got != "update_2.1.0_20240131093000.exe" {
		t.Errorf("FileName() = %q", got)
	}
	if got := s.FileName(mustParse(t, "3"), ""); got != "update_3_20240131093000" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestStagingEnsure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "CareLite_Update")
	s := NewStaging(dir)
	if err := s.Ensure(); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("staging directory not created: %v", err)
	}
	if s.ScriptLogPath() != filepath.Join(dir, "update_log.txt") {
		t.Errorf("ScriptLogPath() = %q", s.ScriptLogPath())
	}
}

func TestStagingSweep(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"update_2.0.0_20240101000000.exe",
		"update_2.1.0_20240131093000",
		"carelite.exe.1234.partial",
		"carelite_update.bat",
		"carelite_update.sh",
		"update_log.txt",
		"notes.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := NewStaging(dir).Sweep()
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}

	entries, _ := os.ReadDir(dir)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	sort.Strings(left)
	if len(left) != 2 || left[0] != "notes.md" || left[1] != "update_log.txt" {
		t.Errorf("remaining files = %v", left)
	}
}

func TestStagingSweepMissingDir(t *testing.T) {
	removed, err := NewStaging(filepath.Join(t.TempDir(), "absent")).Sweep()
	if err != nil || removed != 0 {
		t.Errorf("Sweep() = %d, %v; want 0, nil", removed, err)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	if got := uniquePath(dir, "update_1.exe"); got != filepath.Join(dir, "update_1.exe") {
		t.Errorf("uniquePath() = %q", got)
	}
	_ = os.WriteFile(filepath.Join(dir, "update_1.exe"), nil, 0o600)
	_ = os.WriteFile(filepath.Join(dir, "update_1-1.exe"), nil, 0o600)
	if got := uniquePath(dir, "update_1.exe"); got != filepath.Join(dir, "update_1-2.exe") {
		t.Errorf("uniquePath() = %q, want update_1-2.exe", got)
	}
}

func TestIsStaleKeepsScriptLog(t *testing.T) {
	tests := map[string]bool{
		"update_log.txt":                  false,
		"notes.md":                        false,
		"update_2.1.0_20240131093000.exe": true,
		"update_2.1.0_20240131093000-1":   true,
		"carelite.exe.99.partial":         true,
		"carelite_update.bat":             true,
		"carelite_update.sh":              true,
	}
	for name, want := range tests {
		if got := isStale(name); got != want {
			t.Errorf("isStale(%q) = %v, want %v", name, got, want)
		}
	}
}
