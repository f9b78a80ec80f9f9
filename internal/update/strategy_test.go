package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carelite/internal/diag"
	appErrors "carelite/internal/errors"
	"carelite/internal/platform"
)

func TestParentPIDFromEnv(t *testing.T) {
	tests := map[string]int{"4242": 4242, "": 0, "abc": 0, "-3": 0}
	for value, want := range tests {
		got := ParentPIDFromEnv(func(key string) string {
			if key != ParentPIDEnv {
				t.Errorf("unexpected key %q", key)
			}
			return value
		})
		if got != want {
			t.Errorf("ParentPIDFromEnv(%q) = %d, want %d", value, got, want)
		}
	}
}

func TestNewStrategy(t *testing.T) {
	for name, want := range map[string]string{"": StrategyRelaunch, "relaunch": StrategyRelaunch, "installer": StrategyInstaller} {
		s, err := NewStrategy(name, diag.Discard(), InstallerOptions{Elevator: &recordingElevator{}})
		if err != nil {
			t.Fatalf("NewStrategy(%q) error: %v", name, err)
		}
		if s.Name() != want {
			t.Errorf("NewStrategy(%q).Name() = %q, want %q", name, s.Name(), want)
		}
	}
	if _, err := NewStrategy("replace-in-place", diag.Discard(), InstallerOptions{}); err == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestRelaunchHandoffStartFailure(t *testing.T) {
	staged := stageFile(t, []byte("bin"))
	s := NewRelaunchStrategy(diag.Discard())
	s.start = func(string, []string, []string) (int, error) { return 0, errors.New("exec format error") }

	err := s.Handoff(context.Background(), Handoff{Host: Host{Executable: "/opt/carelite/carelite", PID: 1}, StagedFile: staged})
	if !appErrors.IsCode(err, appErrors.CodeIO) {
		t.Errorf("Handoff() error = %v, want io_error", err)
	}
}

func TestInstallerHandoffElevationCancelled(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "update_2.1.0_20240131093000")
	if err := os.WriteFile(staged, []byte("bin"), 0o600); err != nil {
		t.Fatal(err)
	}
	elevator := &recordingElevator{err: platform.ErrElevationCancelled}
	s := NewInstallerStrategy(diag.Discard(), InstallerOptions{GOOS: "linux", Elevator: elevator})

	err := s.Handoff(context.Background(), Handoff{
		Host:       Host{Executable: "/usr/local/carelite/carelite", InstallDir: "/usr/local/carelite", PID: 10},
		StagedFile: staged,
		StagingDir: dir,
	})
	if !appErrors.IsCode(err, appErrors.CodePrivilegeDenied) {
		t.Fatalf("Handoff() error = %v, want privilege_denied", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "carelite_update.sh")); !os.IsNotExist(err) {
		t.Error("installer script left behind after cancelled elevation")
	}
}

func TestInstallerHandoffWindows(t *testing.T) {
	dir := t.TempDir()
	elevator := &recordingElevator{}
	s := NewInstallerStrategy(diag.Discard(), InstallerOptions{GOOS: "windows", Elevator: elevator, RegisterStartup: true})

	err := s.Handoff(context.Background(), Handoff{
		Host:       Host{Executable: "carelite.exe", InstallDir: `C:\Program Files\CareLite`, PID: 10},
		StagedFile: `C:\Users\care\AppData\Local\Temp\CareLite_Update\update_2.1.0_20240131093000.exe`,
		StagingDir: dir,
	})
	if err != nil {
		t.Fatalf("Handoff() error: %v", err)
	}
	script := filepath.Join(dir, "carelite_update.bat")
	if elevator.program != script || len(elevator.args) != 0 {
		t.Errorf("elevated command = %s %v, want the batch file itself", elevator.program, elevator.args)
	}
	body, err := os.ReadFile(script)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `C:\Program Files\CareLite\carelite.exe`) {
		t.Error("batch script does not target the install directory")
	}
	if !strings.Contains(string(body), "--register-startup") {
		t.Error("batch script does not register the startup entry")
	}
}

type recordingNotifier struct {
	title, message string
}

func (n *recordingNotifier) Notify(title, message string) error {
	n.title, n.message = title, message
	return nil
}

func TestApplyStagedReplacesAndRelaunches(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "carelite")
	staged := filepath.Join(dir, "update_2.1.0_20240131093000")
	if err := os.WriteFile(oldPath, []byte("old version"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(staged, []byte("new version"), 0o755); err != nil {
		t.Fatal(err)
	}

	var started string
	var startedEnv []string
	t.Setenv(ParentPIDEnv, "4242")
	code := ApplyStaged(context.Background(), ApplyOptions{
		OldPath:     oldPath,
		StagedPath:  staged,
		SettleDelay: time.Millisecond,
		Log:         diag.Discard(),
		start: func(program string, _ []string, env []string) (int, error) {
			started, startedEnv = program, env
			return 7, nil
		},
	})

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got, _ := os.ReadFile(oldPath); string(got) != "new version" {
		t.Errorf("old path holds %q, want new version", got)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("staged file not removed after successful apply")
	}
	if started != oldPath {
		t.Errorf("relaunched %q, want %q", started, oldPath)
	}
	if containsEnv(startedEnv, ParentPIDEnv+"=4242") {
		t.Error("relaunched process inherited the parent pid variable")
	}
}

func TestApplyStagedFailureKeepsOldVersion(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "carelite")
	if err := os.WriteFile(oldPath, []byte("old version"), 0o755); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	notifier := &recordingNotifier{}
	var started string
	code := ApplyStaged(context.Background(), ApplyOptions{
		OldPath:       oldPath,
		StagedPath:    filepath.Join(dir, "update_2.1.0_20240131093000"),
		SettleDelay:   time.Millisecond,
		ApplyAttempts: 3,
		RetryDelay:    time.Millisecond,
		Log:           diag.Discard(),
		Notifier:      notifier,
		apply: func(string, string) error {
			attempts++
			return errors.New("text file busy")
		},
		start: func(program string, _ []string, _ []string) (int, error) {
			started = program
			return 7, nil
		},
	})

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if attempts != 3 {
		t.Errorf("apply attempts = %d, want 3", attempts)
	}
	if got, _ := os.ReadFile(oldPath); string(got) != "old version" {
		t.Errorf("old path holds %q after failed apply", got)
	}
	if !strings.HasPrefix(notifier.message, ErrorNoticePrefix) {
		t.Errorf("notification = %q", notifier.message)
	}
	if started != oldPath {
		t.Errorf("relaunched %q, want the old executable", started)
	}
}

func TestSwapBinaryMissingStagedFile(t *testing.T) {
	dir := t.TempDir()
	err := swapBinary(filepath.Join(dir, "absent"), filepath.Join(dir, "carelite"))
	if !appErrors.IsCode(err, appErrors.CodeIO) {
		t.Errorf("swapBinary() error = %v, want io_error", err)
	}
}

func TestApplyStagedSettlesWithoutParentPID(t *testing.T) {
	var opts ApplyOptions
	opts.withDefaults()
	if opts.SettleDelay != DefaultSettleDelay {
		t.Errorf("default SettleDelay = %s, want %s", opts.SettleDelay, DefaultSettleDelay)
	}

	const settle = 40 * time.Millisecond
	begin := time.Now()
	var applied time.Duration
	ApplyStaged(context.Background(), ApplyOptions{
		OldPath:     "/opt/carelite/carelite",
		StagedPath:  "/tmp/update_2.1.0_20240131093000",
		SettleDelay: settle,
		Log:         diag.Discard(),
		apply: func(string, string) error {
			applied = time.Since(begin)
			return nil
		},
		start: func(string, []string, []string) (int, error) { return 1, nil },
	})
	if applied < settle {
		t.Errorf("swap attempted after %s, want at least %s", applied, settle)
	}
}
