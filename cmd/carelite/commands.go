package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"carelite/internal/config"
	"carelite/internal/consent"
	"carelite/internal/history"
	"carelite/internal/platform"
	"carelite/internal/schedule"
	"carelite/internal/update"

	"github.com/spf13/cobra"
)

const historyOpenTimeout = 10 * time.Second

// runResident is the normal launch: clean the staging area, make sure the
// program starts at login, then check on start and on the schedule while the
// consent loop owns the terminal. It returns when ctx is cancelled.
func runResident(ctx context.Context, opts *rootOptions) error {
	log := opts.openLog()
	a, err := newApp(ctx, log, os.Stdout)
	if err != nil {
		_ = log.Close()
		return err
	}
	defer a.Close()

	a.sweep()
	if config.GetBool(config.KeyStartupRegister) {
		if err := registerStartup(platform.NewStartupRegistrar(), a.host.Executable); err != nil {
			log.Warnf("%v", err)
		}
	}

	loop := consent.NewLoop(consent.New(os.Stdin, os.Stdout))
	coord := a.coordinator(loop)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	check := func(ctx context.Context) {
		res := <-coord.Initiate(ctx)
		if res.Outcome == update.OutcomeBusy {
			log.Printf("update check skipped: a session is already running")
		}
	}

	if config.GetBool(config.KeyUpdateCheckOnStart) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check(ctx)
		}()
	}

	spec := config.GetString(config.KeyUpdateSchedule)
	if schedule.Enabled(spec) {
		s, err := schedule.New(spec, check, log)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Start(ctx)
		}()
		log.Printf("periodic update checks enabled (%s)", s.Spec())
	}

	loop.Run(ctx)
	cancel()
	wg.Wait()
	return nil
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check for an update once and install it if approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.openLog()
			a, err := newApp(cmd.Context(), log, os.Stdout)
			if err != nil {
				_ = log.Close()
				return err
			}
			defer a.Close()

			a.sweep()
			res := a.coordinator(consent.New(os.Stdin, os.Stdout)).Run(cmd.Context())
			printResult(cmd.OutOrStdout(), res, log.Path())
			if res.Outcome == update.OutcomeFailed {
				return fmt.Errorf("update failed: %w", res.Err)
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent update sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), historyOpenTimeout)
			defer cancel()

			store, err := history.Open(ctx, config.GetString(config.KeyHistoryPath))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			last, ok, err := store.LastCheck(ctx)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), historyReport{
				Version:   Version,
				Entries:   entries,
				LastCheck: last,
				Checked:   ok,
				Now:       time.Now(),
			})
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of sessions to show")
	return cmd
}

// runRegisterStartup handles --register-startup, which the installer script
// runs against the freshly installed executable.
func runRegisterStartup(opts *rootOptions) error {
	log := opts.openLog()
	defer func() { _ = log.Close() }()

	host, err := update.DetectHost(Version, "")
	if err != nil {
		return err
	}
	if err := registerStartup(platform.NewStartupRegistrar(), host.Executable); err != nil {
		log.Errorf("%v", err)
		return err
	}
	log.Printf("registered %s to run at startup", host.Executable)
	return nil
}

func registerStartup(r platform.StartupRegistrar, target string) error {
	if err := r.CreateStartupEntry(target); err != nil {
		return fmt.Errorf("register startup entry for %s: %w", target, err)
	}
	return nil
}

// runApplyUpdate handles --apply-update <old> <staged>. It never fails: a
// failed swap is reported to the user and the old executable is relaunched.
func runApplyUpdate(ctx context.Context, opts *rootOptions, oldPath, stagedPath string) {
	log := opts.openLog()
	defer func() { _ = log.Close() }()

	update.ApplyStaged(ctx, update.ApplyOptions{
		OldPath:    oldPath,
		StagedPath: stagedPath,
		ParentPID:  update.ParentPIDFromEnv(os.Getenv),
		Log:        log,
		Notifier:   platform.NewNotifier(config.AppName),
	})
}
