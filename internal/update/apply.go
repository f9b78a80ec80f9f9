package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"carelite/internal/diag"
	"carelite/internal/platform"

	goupdate "github.com/inconshreveable/go-update"
)

// DefaultSettleDelay is how long the helper waits before the swap when it does
// not know the parent pid.
const DefaultSettleDelay = time.Second

// ApplyOptions configures the helper side of the relaunch strategy.
type ApplyOptions struct {
	OldPath    string
	StagedPath string
	ParentPID  int

	// WaitAttempts and WaitDelay bound the wait for the parent to exit.
	WaitAttempts int
	WaitDelay    time.Duration
	// SettleDelay is slept instead when no parent pid is known.
	SettleDelay time.Duration
	// ApplyAttempts bounds retries of the swap while the old file is still locked.
	ApplyAttempts int
	RetryDelay    time.Duration

	Log      *diag.Log
	Notifier platform.Notifier

	start func(program string, args, env []string) (int, error)
	apply func(stagedPath, targetPath string) error
}

func (o *ApplyOptions) withDefaults() {
	if o.WaitAttempts <= 0 {
		o.WaitAttempts = 20
	}
	if o.WaitDelay <= 0 {
		o.WaitDelay = 500 * time.Millisecond
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.ApplyAttempts <= 0 {
		o.ApplyAttempts = 10
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.start == nil {
		o.start = platform.StartDetached
	}
	if o.apply == nil {
		o.apply = swapBinary
	}
}

// ApplyStaged runs in the helper process started by RelaunchStrategy. It waits
// for the parent to exit, swaps the staged binary into the old path, removes
// the staged file and starts the executable at the old path. If the swap
// fails the old executable is left intact, the user is notified and the old
// executable is started instead. The returned exit code is always 0.
func ApplyStaged(ctx context.Context, opts ApplyOptions) int {
	opts.withDefaults()
	log := opts.Log

	log.Printf("apply: replacing %s with %s", opts.OldPath, opts.StagedPath)
	if opts.ParentPID > 0 {
		if err := platform.WaitForExit(ctx, opts.ParentPID, opts.WaitAttempts, opts.WaitDelay); err != nil {
			log.Warnf("apply: %v; trying anyway", err)
		}
	} else {
		log.Printf("apply: no parent pid, waiting %s", opts.SettleDelay)
		select {
		case <-ctx.Done():
		case <-time.After(opts.SettleDelay):
		}
	}

	var err error
	for attempt := 1; attempt <= opts.ApplyAttempts; attempt++ {
		err = opts.apply(opts.StagedPath, opts.OldPath)
		if err == nil {
			break
		}
		log.Warnf("apply: attempt %d/%d failed: %v", attempt, opts.ApplyAttempts, err)
		if attempt < opts.ApplyAttempts {
			select {
			case <-ctx.Done():
				attempt = opts.ApplyAttempts
			case <-time.After(opts.RetryDelay):
			}
		}
	}

	if err != nil {
		log.Errorf("apply: update failed, keeping current version: %v", err)
		if opts.Notifier != nil {
			if nerr := opts.Notifier.Notify("Update failed", ErrorNoticePrefix+err.Error()); nerr != nil {
				log.Warnf("apply: notification failed: %v", nerr)
			}
		}
	} else {
		log.Printf("apply: %s replaced", opts.OldPath)
		if rmErr := os.Remove(opts.StagedPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			// The helper is running from the staged file on Windows; the next
			// startup sweep removes it.
			log.Debugf("apply: staged file left for sweep: %v", rmErr)
		}
	}

	pid, startErr := opts.start(opts.OldPath, nil, withoutParentPID(os.Environ()))
	if startErr != nil {
		log.Errorf("apply: relaunch %s failed: %v", opts.OldPath, startErr)
		return 0
	}
	log.Printf("apply: relaunched %s (pid %d)", opts.OldPath, pid)
	return 0
}

// swapBinary replaces target with the staged file through go-update: the new
// bytes go to a sibling, the target is renamed aside, the sibling renamed in,
// and the rename is rolled back on failure.
func swapBinary(stagedPath, targetPath string) error {
	//nolint:gosec // G304: staged file inside the private staging directory
	f, err := os.Open(stagedPath)
	if err != nil {
		return ioError("open staged file", err)
	}
	defer func() { _ = f.Close() }()

	info, err := os.Stat(targetPath)
	mode := os.FileMode(0o755)
	if err == nil {
		mode = info.Mode().Perm()
	}

	if err := goupdate.Apply(f, goupdate.Options{TargetPath: targetPath, TargetMode: mode}); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return ioError(fmt.Sprintf("replace %s (rollback failed: %v)", targetPath, rerr), err)
		}
		return ioError("replace "+targetPath, err)
	}
	return nil
}

func withoutParentPID(env []string) []string {
	out := make([]string, 0, len(env))
	prefix := ParentPIDEnv + "="
	for _, kv := range env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			continue
		}
		out = append(out, kv)
	}
	return out
}
