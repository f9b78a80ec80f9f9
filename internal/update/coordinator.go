package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"carelite/internal/diag"
	appErrors "carelite/internal/errors"

	"github.com/google/uuid"
)

// ErrorNoticePrefix starts every user-visible failure message.
const ErrorNoticePrefix = "An error occurred while trying to update: "

// ReleaseSource returns the latest published release.
type ReleaseSource interface {
	FetchLatest(ctx context.Context) (*Release, error)
}

// Fetcher stages a release asset and returns the staged path.
type Fetcher interface {
	Download(ctx context.Context, url, dir, name string) (string, error)
}

// Offer is what the user is asked to approve.
type Offer struct {
	Current   Version
	Latest    Version
	Notes     string
	AssetName string
}

// Notice is a user-visible message, typically a failure.
type Notice struct {
	Title   string
	Message string
	LogPath string
	Err     error
}

// Prompter is the consent UI.
type Prompter interface {
	// Confirm asks whether to install offer. Cancellation of ctx counts as no.
	Confirm(ctx context.Context, offer Offer) (bool, error)
	Notify(ctx context.Context, notice Notice)
}

// Handoff carries everything a strategy needs to replace the host binary.
type Handoff struct {
	SessionID  string
	Host       Host
	StagedFile string
	StagingDir string
	// ScriptLog is where an installer script reports its outcome.
	ScriptLog string
	Latest    Version
}

// Strategy replaces the running executable with a staged file. A nil error
// means the process should exit now.
type Strategy interface {
	Name() string
	Handoff(ctx context.Context, h Handoff) error
}

// Dependencies are the collaborators a Coordinator cannot work without.
type Dependencies struct {
	Source   ReleaseSource
	Fetcher  Fetcher
	Prompter Prompter
	Strategy Strategy
}

// Coordinator drives one update session at a time through the state machine.
type Coordinator struct {
	host      Host
	deps      Dependencies
	matcher   AssetMatcher
	assetName string
	verifier  Verifier
	staging   *Staging
	log       *diag.Log

	consentTimeout time.Duration
	autoApprove    bool

	exit         func(code int)
	onTransition func(State)
	record       func(Result)
	newID        func() string
	now          func() time.Time

	state atomic.Int32
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAsset sets the target asset name and the match policy used to find it.
func WithAsset(name string, matcher AssetMatcher) Option {
	return func(c *Coordinator) {
		c.assetName = name
		if matcher != nil {
			c.matcher = matcher
		}
	}
}

// WithVerifier checks staged files before handoff.
func WithVerifier(v Verifier) Option {
	return func(c *Coordinator) {
		c.verifier = v
	}
}

// WithStaging sets the staging area.
func WithStaging(s *Staging) Option {
	return func(c *Coordinator) {
		c.staging = s
	}
}

// WithLog sets the diagnostics log.
func WithLog(l *diag.Log) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithConsentTimeout bounds how long the prompt may stay unanswered.
func WithConsentTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.consentTimeout = d
	}
}

// WithAutoApprove skips the consent prompt.
func WithAutoApprove(enabled bool) Option {
	return func(c *Coordinator) {
		c.autoApprove = enabled
	}
}

// WithExitFunc replaces os.Exit, which is called after a successful handoff.
func WithExitFunc(fn func(int)) Option {
	return func(c *Coordinator) {
		c.exit = fn
	}
}

// WithTransitionHook observes every state change.
func WithTransitionHook(fn func(State)) Option {
	return func(c *Coordinator) {
		c.onTransition = fn
	}
}

// WithRecorder receives the result of every session that ran. Busy
// rejections are not recorded.
func WithRecorder(fn func(Result)) Option {
	return func(c *Coordinator) {
		c.record = fn
	}
}

// NewCoordinator creates a coordinator for host.
func NewCoordinator(host Host, deps Dependencies, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:    host,
		deps:    deps,
		matcher: NameMatcher{},
		staging: NewStaging(filepath.Join(os.TempDir(), "CareLite_Update")),
		log:     diag.Discard(),
		exit:    os.Exit,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assetName == "" {
		c.assetName = host.ExecutableName()
	}
	return c
}

// State returns the state of the active session, or StateIdle.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Run executes one session synchronously. If a session is already active it
// returns OutcomeBusy immediately without touching the network.
func (c *Coordinator) Run(ctx context.Context) Result {
	if !c.begin() {
		return c.busy()
	}
	return c.execute(ctx)
}

// Initiate starts a session on a background goroutine. The channel yields
// exactly one Result and is then closed.
func (c *Coordinator) Initiate(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	if !c.begin() {
		out <- c.busy()
		close(out)
		return out
	}
	go func() {
		defer close(out)
		out <- c.execute(ctx)
	}()
	return out
}

func (c *Coordinator) begin() bool {
	return c.state.CompareAndSwap(int32(StateIdle), int32(StateCheckingForUpdate))
}

func (c *Coordinator) busy() Result {
	c.log.Debugf("update session already active (%s); request ignored", c.State())
	return Result{Outcome: OutcomeBusy, State: c.State()}
}

// transition records s. Returning to idle only releases the guard at the end
// of execute, so a session is never observed as idle while it is finishing.
func (c *Coordinator) transition(s State) {
	if s != StateIdle {
		c.state.Store(int32(s))
	}
	c.log.Debugf("state -> %s", s)
	if c.onTransition != nil {
		c.onTransition(s)
	}
}

func (c *Coordinator) execute(ctx context.Context) Result {
	sess := &Session{
		ID:                c.newID(),
		Started:           c.now(),
		CurrentExecutable: c.host.Executable,
		TargetInstallPath: filepath.Join(c.host.InstallDir, c.host.ExecutableName()),
	}
	if c.onTransition != nil {
		c.onTransition(StateCheckingForUpdate)
	}
	c.log.Printf("session %s started: %s", sess.ID, c.host.Banner())

	res := c.drive(ctx, sess)
	res.SessionID = sess.ID
	res.Started = sess.Started
	res.Finished = c.now()

	if res.Outcome == OutcomeHandedOff {
		c.transition(StateRelaunched)
		res.State = StateRelaunched
		c.log.Printf("session %s handed off to %s strategy; exiting", sess.ID, c.deps.Strategy.Name())
		c.recordResult(res)
		c.exit(0)
		return res
	}

	c.log.Printf("session %s ended: %s (%s)", sess.ID, res.Outcome, res.State)
	c.recordResult(res)
	c.state.Store(int32(StateIdle))
	return res
}

func (c *Coordinator) recordResult(res Result) {
	if c.record != nil {
		c.record(res)
	}
}

func (c *Coordinator) drive(ctx context.Context, sess *Session) Result {
	current, err := ParseVersion(c.host.Version)
	if err != nil {
		c.log.Printf("cannot determine current version from %q; skipping update check", c.host.Version)
		c.transition(StateIdle)
		return Result{Outcome: OutcomeSkipped, State: StateIdle}
	}
	res := Result{Current: current}

	c.log.Printf("checking for updates (current %s)", current)
	release, err := c.deps.Source.FetchLatest(ctx)
	if err != nil {
		return c.abort(ctx, sess, res, err, false)
	}
	decision, latest, err := Decide(current, release)
	if err != nil {
		return c.abort(ctx, sess, res, err, false)
	}
	res.Latest = latest
	if decision == DecisionUpToDate {
		c.log.Printf("up to date: current %s, latest %s", current, latest)
		c.transition(StateIdle)
		res.Outcome = OutcomeUpToDate
		res.State = StateIdle
		return res
	}

	c.transition(StateUpdateAvailable)
	c.log.Printf("update available: %s -> %s", current, latest)
	asset, err := c.matcher.Match(release, c.assetName)
	if err != nil {
		return c.abort(ctx, sess, res, err, false)
	}
	c.log.Printf("selected asset %s (%s)", asset.Name, asset.URL)

	c.transition(StateAwaitingConsent)
	approved, err := c.confirm(ctx, Offer{Current: current, Latest: latest, Notes: release.Notes, AssetName: asset.Name})
	if err != nil || !approved {
		if err != nil {
			c.log.Warnf("consent prompt ended without an answer: %v", err)
		} else {
			c.log.Printf("update to %s declined", latest)
		}
		c.transition(StateAborted)
		res.Outcome = OutcomeDeclined
		res.State = StateAborted
		return res
	}

	c.transition(StateDownloading)
	if err := c.staging.Ensure(); err != nil {
		return c.abort(ctx, sess, res, err, true)
	}
	name := c.staging.FileName(latest, filepath.Ext(asset.Name))
	staged, err := c.deps.Fetcher.Download(ctx, asset.URL, c.staging.Dir, name)
	if err != nil {
		return c.abort(ctx, sess, res, err, true)
	}
	sess.StagingFile = staged
	c.log.Printf("downloaded %s to %s", asset.Name, staged)

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, release, asset, staged); err != nil {
			return c.abort(ctx, sess, res, err, true)
		}
	}
	c.transition(StateStaged)
	res.StagedPath = staged

	if c.deps.Strategy == nil {
		return c.abort(ctx, sess, res, ErrNoStrategy, true)
	}
	c.transition(StateReplacing)
	err = c.deps.Strategy.Handoff(ctx, Handoff{
		SessionID:  sess.ID,
		Host:       c.host,
		StagedFile: staged,
		StagingDir: c.staging.Dir,
		ScriptLog:  c.staging.ScriptLogPath(),
		Latest:     latest,
	})
	if err != nil {
		return c.abort(ctx, sess, res, err, true)
	}
	res.Outcome = OutcomeHandedOff
	res.State = StateReplacing
	return res
}

func (c *Coordinator) confirm(ctx context.Context, offer Offer) (bool, error) {
	if c.autoApprove {
		c.log.Printf("auto-approving update to %s", offer.Latest)
		return true, nil
	}
	if c.deps.Prompter == nil {
		return false, errors.New("no consent prompt available")
	}
	if c.consentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.consentTimeout)
		defer cancel()
	}
	return c.deps.Prompter.Confirm(ctx, offer)
}

// abort ends the session: the staged file is removed, the error logged and,
// for failures after consent, shown to the user.
func (c *Coordinator) abort(ctx context.Context, sess *Session, res Result, err error, notify bool) Result {
	code := appErrors.CodeOf(err)
	c.log.Errorf("update aborted [%s]: %v", code, err)
	if appErrors.Recoverable(code) {
		c.log.Printf("session %s: the next check will retry", sess.ID)
	}
	if sess.StagingFile != "" {
		if rmErr := os.Remove(sess.StagingFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.log.Warnf("could not remove staged file %s: %v", sess.StagingFile, rmErr)
		}
		sess.StagingFile = ""
	}
	if notify && c.deps.Prompter != nil {
		c.deps.Prompter.Notify(ctx, Notice{
			Title:   "Update failed",
			Message: ErrorNoticePrefix + err.Error(),
			LogPath: c.log.Path(),
			Err:     err,
		})
	}
	c.transition(StateAborted)
	res.Outcome = OutcomeFailed
	res.State = StateAborted
	res.StagedPath = ""
	res.Err = err
	return res
}
