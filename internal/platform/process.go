package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessRunning reports whether pid currently exists. Lookup errors count as
// not running.
func ProcessRunning(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid)) //nolint:gosec // G115: pids fit in int32
	return err == nil && exists
}

// WaitForExit polls until pid is gone, checking at most attempts times with
// delay between checks.
func WaitForExit(ctx context.Context, pid, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ProcessRunning(ctx, pid) {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("process %d still running after %d checks", pid, attempts)
}
