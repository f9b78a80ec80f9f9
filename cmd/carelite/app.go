package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/user"
	"sync"
	"time"

	"carelite/internal/config"
	"carelite/internal/consent"
	"carelite/internal/diag"
	"carelite/internal/history"
	"carelite/internal/update"
)

const recordTimeout = 5 * time.Second

// app holds the collaborators shared by the resident host and the check
// command.
type app struct {
	host    update.Host
	log     *diag.Log
	staging *update.Staging
	history *history.Store
	out     *os.File

	resolver *update.Resolver
	matcher  update.AssetMatcher
	verifier *update.ReleaseVerifier
	strategy update.Strategy

	closeOnce sync.Once
}

func newApp(ctx context.Context, log *diag.Log, out *os.File) (*app, error) {
	host, err := update.DetectHost(Version, config.GetString(config.KeyUpdateInstallDir))
	if err != nil {
		return nil, err
	}

	owner := config.GetString(config.KeyUpdateOwner)
	repo := config.GetString(config.KeyUpdateRepo)
	matcher, err := update.NewMatcher(config.GetString(config.KeyUpdateMatch),
		config.GetString(config.KeyUpdateDownloadBase), owner, repo)
	if err != nil {
		return nil, err
	}

	metaTimeout := config.GetDuration(config.KeyUpdateMetaTimeout)
	resolver := update.NewResolver(owner, repo,
		update.WithAPIBase(config.GetString(config.KeyUpdateAPIBase)),
		update.WithTimeout(metaTimeout),
	)

	strategy, err := update.NewStrategy(config.GetString(config.KeyUpdateStrategy), log, update.InstallerOptions{
		RegisterStartup: config.GetBool(config.KeyStartupRegister),
		RunAsUser:       currentUser(),
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		host:     host,
		log:      log,
		staging:  update.NewStaging(config.GetString(config.KeyUpdateStagingDir)),
		out:      out,
		resolver: resolver,
		matcher:  matcher,
		strategy: strategy,
		verifier: &update.ReleaseVerifier{
			Matcher:       matcher,
			ChecksumAsset: config.GetString(config.KeyUpdateChecksumAsset),
			PublicKey:     config.GetString(config.KeyUpdateMinisignKey),
			HTTPClient:    &http.Client{Timeout: metaTimeout},
			Log:           log,
		},
	}

	store, err := history.Open(ctx, config.GetString(config.KeyHistoryPath))
	if err != nil {
		log.Warnf("session history unavailable: %v", err)
	} else {
		a.history = store
		log.Debugf("session history at %s", store.Path())
	}
	return a, nil
}

// coordinator builds a coordinator that prompts through prompter.
func (a *app) coordinator(prompter update.Prompter) *update.Coordinator {
	return update.NewCoordinator(a.host,
		update.Dependencies{
			Source:   a.resolver,
			Fetcher:  progressFetcher{out: a.out, timeout: config.GetDuration(config.KeyUpdateDLTimeout)},
			Prompter: prompter,
			Strategy: a.strategy,
		},
		update.WithAsset(config.GetString(config.KeyUpdateAssetName), a.matcher),
		update.WithVerifier(a.verifier),
		update.WithStaging(a.staging),
		update.WithLog(a.log),
		update.WithConsentTimeout(config.GetDuration(config.KeyUpdateConsentTimeout)),
		update.WithAutoApprove(config.GetBool(config.KeyUpdateAutoApprove)),
		update.WithRecorder(a.record),
		update.WithExitFunc(func(code int) {
			a.Close()
			os.Exit(code)
		}),
	)
}

func (a *app) record(res update.Result) {
	if a.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := a.history.Record(ctx, res); err != nil {
		a.log.Warnf("record session: %v", err)
	}
}

// sweep clears leftovers of earlier attempts from the staging directory.
func (a *app) sweep() {
	n, err := a.staging.Sweep()
	if err != nil {
		a.log.Warnf("sweep %s: %v", a.staging.Dir, err)
		return
	}
	if n > 0 {
		a.log.Printf("removed %d stale file(s) from %s", n, a.staging.Dir)
	}
}

// Close releases the history database and the log.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.history != nil {
			_ = a.history.Close()
		}
		_ = a.log.Close()
	})
}

// progressFetcher downloads with a fresh progress display for every file.
type progressFetcher struct {
	out     *os.File
	timeout time.Duration
}

func (f progressFetcher) Download(ctx context.Context, url, dir, name string) (string, error) {
	report, stop := consent.NewProgressFunc(f.out, fmt.Sprintf("Downloading %s", name))
	defer stop()
	d := update.NewDownloader(
		update.WithDownloadTimeout(f.timeout),
		update.WithProgress(report),
	)
	return d.Download(ctx, url, dir, name)
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	return u.Username
}
