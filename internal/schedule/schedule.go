// Package schedule runs the periodic update check of the resident host.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"carelite/internal/diag"

	"github.com/robfig/cron/v3"
)

// Disabled turns periodic checks off when used as the schedule.
const Disabled = "off"

// Scheduler triggers a job on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	spec string
	cron *cron.Cron
	id   cron.EntryID

	mu  sync.Mutex
	ctx context.Context
}

// Enabled reports whether spec asks for periodic checks at all.
func Enabled(spec string) bool {
	s := strings.ToLower(strings.TrimSpace(spec))
	return s != "" && s != Disabled
}

// Validate parses spec as a standard five-field expression or a descriptor
// such as "@every 6h" or "@daily".
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid check schedule %q: %w", spec, err)
	}
	return nil
}

// New registers job under spec. Nothing runs until Start.
func New(spec string, job func(context.Context), log *diag.Log) (*Scheduler, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	logger := cron.PrintfLogger(log)
	s := &Scheduler{
		spec: spec,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx: context.Background(),
	}

	id, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		log.Printf("scheduled update check (%s)", spec)
		job(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("register check schedule: %w", err)
	}
	s.id = id
	return s, nil
}

// Start runs the schedule until ctx is cancelled, then waits for a running job
// to return. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// Next is the time of the next scheduled check, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Spec returns the schedule expression.
func (s *Scheduler) Spec() string {
	return s.spec
}
