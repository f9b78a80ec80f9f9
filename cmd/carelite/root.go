package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"carelite/internal/config"
	"carelite/internal/diag"
	"carelite/internal/schedule"
	"carelite/internal/update"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	verbose     bool
	strategy    string
	schedule    string
	stagingDir  string
	autoApprove bool

	applyUpdate     bool
	registerStartup bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "carelite",
		Short: "CareLite with built-in self-update",
		Long: `CareLite keeps itself current. Started without a subcommand it stays
resident, checks the release feed on start and on a schedule, and asks
before installing a newer release.`,
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.applyUpdate {
				return cobra.ExactArgs(2)(cmd, args)
			}
			return cobra.NoArgs(cmd, args)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := opts.initConfig(cmd.Flags().Changed)
			if err != nil && opts.applyUpdate {
				// The helper must finish the swap even with a broken config file.
				_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				return nil
			}
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.applyUpdate:
				runApplyUpdate(cmd.Context(), opts, args[0], args[1])
				return nil
			case opts.registerStartup:
				return runRegisterStartup(opts)
			}
			return runResident(cmd.Context(), opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default is .carelite/config.yaml in the working tree)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror the update log to stderr")
	pf.StringVar(&opts.strategy, "strategy", "", "Replacement strategy (relaunch, installer)")
	pf.StringVar(&opts.stagingDir, "staging-dir", "", "Directory downloads are staged in")
	pf.BoolVar(&opts.autoApprove, "yes", false, "Install updates without asking")

	f := cmd.Flags()
	f.StringVar(&opts.schedule, "schedule", "", `Check schedule, a cron expression or "off"`)
	f.BoolVar(&opts.applyUpdate, "apply-update", false, "Replace <old> with <staged> and relaunch (used by the updater)")
	f.BoolVar(&opts.registerStartup, "register-startup", false, "Register CareLite to start at login and exit")
	_ = f.MarkHidden("apply-update")
	_ = f.MarkHidden("register-startup")

	cmd.AddCommand(newCheckCmd(opts), newHistoryCmd(), newVersionCmd())
	return cmd
}

func (o *rootOptions) initConfig(changed func(string) bool) error {
	var initOpts []config.Option
	if path := strings.TrimSpace(o.configPath); path != "" {
		initOpts = append(initOpts, config.WithProjectConfig(path))
	}
	if err := config.Initialize(initOpts...); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	overrides, err := o.configOverrides(changed)
	if err != nil {
		return err
	}
	return config.ApplyOverrides(overrides)
}

// configOverrides returns the config keys set explicitly on the command line.
func (o *rootOptions) configOverrides(changed func(string) bool) (map[string]any, error) {
	overrides := map[string]any{}
	if changed("strategy") {
		s := strings.ToLower(strings.TrimSpace(o.strategy))
		if s != update.StrategyRelaunch && s != update.StrategyInstaller {
			return nil, fmt.Errorf("unknown strategy %q (want %s or %s)", o.strategy, update.StrategyRelaunch, update.StrategyInstaller)
		}
		overrides[config.KeyUpdateStrategy] = s
	}
	if changed("schedule") {
		s := strings.TrimSpace(o.schedule)
		if schedule.Enabled(s) {
			if err := schedule.Validate(s); err != nil {
				return nil, err
			}
		}
		overrides[config.KeyUpdateSchedule] = s
	}
	if changed("staging-dir") {
		overrides[config.KeyUpdateStagingDir] = strings.TrimSpace(o.stagingDir)
	}
	if changed("yes") {
		overrides[config.KeyUpdateAutoApprove] = o.autoApprove
	}
	return overrides, nil
}

// openLog opens the diagnostics log, mirroring it to stderr in verbose mode.
func (o *rootOptions) openLog() *diag.Log {
	var logOpts []diag.Option
	if o.verbose || strings.EqualFold(config.GetString(config.KeyLogLevel), "debug") {
		logOpts = append(logOpts, diag.WithConsole(os.Stderr, charmlog.DebugLevel))
	}
	l, err := diag.Open(config.GetString(config.KeyLogPath), logOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v; update log disabled\n", err)
		return diag.New(io.Discard, logOpts...)
	}
	return l
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
