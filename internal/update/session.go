package update

import "time"

// State is a step of the update state machine.
type State int32

const (
	StateIdle State = iota
	StateCheckingForUpdate
	StateUpdateAvailable
	StateAwaitingConsent
	StateDownloading
	StateStaged
	StateReplacing
	StateRelaunched
	StateAborted
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateCheckingForUpdate: "checking-for-update",
	StateUpdateAvailable:   "update-available",
	StateAwaitingConsent:   "awaiting-consent",
	StateDownloading:       "downloading",
	StateStaged:            "staged",
	StateReplacing:         "replacing",
	StateRelaunched:        "relaunched",
	StateAborted:           "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Outcome summarizes how a session ended.
type Outcome int

const (
	// OutcomeUpToDate: the release is not newer than the host.
	OutcomeUpToDate Outcome = iota
	// OutcomeBusy: another session was already running; nothing was done.
	OutcomeBusy
	// OutcomeDeclined: the user said no, dismissed the prompt or let it time out.
	OutcomeDeclined
	// OutcomeHandedOff: a replacement strategy took over and the process is exiting.
	OutcomeHandedOff
	// OutcomeFailed: the session aborted with Err.
	OutcomeFailed
	// OutcomeSkipped: the host version could not be parsed (development builds).
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeBusy:
		return "busy"
	case OutcomeDeclined:
		return "declined"
	case OutcomeHandedOff:
		return "handed-off"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of one update session.
type Result struct {
	SessionID  string
	Outcome    Outcome
	State      State
	Current    Version
	Latest     Version
	StagedPath string
	Started    time.Time
	Finished   time.Time
	Err        error
}

// Session is the mutable record of one update attempt.
type Session struct {
	ID                string
	Started           time.Time
	CurrentExecutable string
	StagingFile       string
	TargetInstallPath string
}
