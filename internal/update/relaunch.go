package update

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"carelite/internal/diag"
	"carelite/internal/platform"
)

const (
	// ApplyUpdateFlag puts the binary into helper mode:
	// carelite --apply-update <oldExecutablePath> <stagedFilePath>.
	ApplyUpdateFlag = "--apply-update"
	// ParentPIDEnv tells the helper which process to wait for.
	ParentPIDEnv = "CARELITE_UPDATE_PARENT_PID"

	StrategyRelaunch  = "relaunch"
	StrategyInstaller = "installer"
)

// RelaunchStrategy starts the staged binary as a detached helper which waits
// for this process to exit, swaps itself into the old path and starts it. The
// helper runs from the staged file, so the old path is never held open by it.
type RelaunchStrategy struct {
	log   *diag.Log
	start func(program string, args, env []string) (int, error)
}

// NewRelaunchStrategy creates the self-relaunch strategy.
func NewRelaunchStrategy(log *diag.Log) *RelaunchStrategy {
	return &RelaunchStrategy{log: log, start: platform.StartDetached}
}

// Name implements Strategy.
func (s *RelaunchStrategy) Name() string { return StrategyRelaunch }

// Handoff implements Strategy. It returns as soon as the helper has started.
func (s *RelaunchStrategy) Handoff(_ context.Context, h Handoff) error {
	if runtime.GOOS != "windows" {
		//nolint:gosec // G302: staged binary must be executable
		if err := os.Chmod(h.StagedFile, 0o755); err != nil {
			return ioError("mark staged file executable", err)
		}
	}
	args := []string{ApplyUpdateFlag, h.Host.Executable, h.StagedFile}
	env := append(os.Environ(), ParentPIDEnv+"="+strconv.Itoa(h.Host.PID))

	pid, err := s.start(h.StagedFile, args, env)
	if err != nil {
		return ioError("start update helper", err)
	}
	s.log.Printf("update helper started (pid %d): %s %s %s", pid, ApplyUpdateFlag, h.Host.Executable, h.StagedFile)
	return nil
}

// ParentPIDFromEnv reads ParentPIDEnv; 0 when unset or malformed.
func ParentPIDFromEnv(getenv func(string) string) int {
	pid, err := strconv.Atoi(getenv(ParentPIDEnv))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// NewStrategy builds the strategy named by the update.strategy setting.
func NewStrategy(name string, log *diag.Log, installer InstallerOptions) (Strategy, error) {
	switch name {
	case "", StrategyRelaunch:
		return NewRelaunchStrategy(log), nil
	case StrategyInstaller:
		return NewInstallerStrategy(log, installer), nil
	default:
		return nil, fmt.Errorf("unknown update strategy %q", name)
	}
}
