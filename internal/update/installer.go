package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"carelite/internal/diag"
	"carelite/internal/platform"
)

// InstallerOptions configures the elevated installer strategy.
type InstallerOptions struct {
	RegisterStartup bool
	// RunAsUser is the account the installed program is relaunched as.
	RunAsUser    string
	WaitAttempts int
	WaitDelay    time.Duration
	Elevator     platform.Elevator
	GOOS         string
}

// InstallerStrategy writes an installer script into the staging directory and
// launches it elevated. The handoff is fire-and-forget: once the script is
// running, its outcome is only visible in update_log.txt.
type InstallerStrategy struct {
	opts InstallerOptions
	log  *diag.Log
}

// NewInstallerStrategy creates the elevated installer strategy.
func NewInstallerStrategy(log *diag.Log, opts InstallerOptions) *InstallerStrategy {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Elevator == nil {
		opts.Elevator = platform.NewElevator()
	}
	return &InstallerStrategy{opts: opts, log: log}
}

// Name implements Strategy.
func (s *InstallerStrategy) Name() string { return StrategyInstaller }

// Handoff implements Strategy.
func (s *InstallerStrategy) Handoff(_ context.Context, h Handoff) error {
	params := platform.ScriptParams{
		GOOS:            s.opts.GOOS,
		StagedFile:      h.StagedFile,
		InstallDir:      h.Host.InstallDir,
		ExecutableName:  h.Host.ExecutableName(),
		ParentPID:       h.Host.PID,
		RegisterStartup: s.opts.RegisterStartup,
		LogFile:         h.ScriptLog,
		RunAsUser:       s.opts.RunAsUser,
		WaitAttempts:    s.opts.WaitAttempts,
		WaitDelay:       s.opts.WaitDelay,
	}
	if params.LogFile == "" {
		params.LogFile = NewStaging(h.StagingDir).ScriptLogPath()
	}
	script, err := platform.InstallerScript(params)
	if err != nil {
		return ioError("render installer script", err)
	}

	scriptPath := filepath.Join(h.StagingDir, platform.ScriptFileName(s.opts.GOOS))
	//nolint:gosec // G306: the script must be executable by the elevated shell
	if err := os.WriteFile(scriptPath, script, 0o700); err != nil {
		return ioError("write installer script", err)
	}
	s.log.Printf("installer script written to %s (log: %s)", scriptPath, params.LogFile)

	program, args := scriptPath, []string(nil)
	if s.opts.GOOS != "windows" {
		program, args = "/bin/sh", []string{scriptPath}
	}
	if err := s.opts.Elevator.LaunchElevated(program, args); err != nil {
		_ = os.Remove(scriptPath)
		if errors.Is(err, platform.ErrElevationCancelled) {
			return privilegeDenied("administrator rights are required to install the update", err)
		}
		return ioError("launch installer", err)
	}
	s.log.Printf("installer launched elevated; target %s", params.Target())
	return nil
}
