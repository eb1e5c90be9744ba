// Package scheduler triggers the daily pass from an in-process cron.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
)

// Runner starts notification passes.
type Runner interface {
	Run(ctx context.Context, today time.Time, opts notification.Options) (notification.Report, error)
	Today() time.Time
}

type Scheduler struct {
	cron   *cron.Cron
	svc    Runner
	logger *logging.Logger
}

// New returns a Scheduler evaluating specs in loc.
func New(svc Runner, loc *time.Location, logger *logging.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		svc:    svc,
		logger: logger,
	}
}

// AddDaily registers the pass under a standard five-field cron spec.
func (s *Scheduler) AddDaily(spec string) error {
	_, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		s.logger.Errorf("Error adding cron job %q: %v", spec, err)
		return err
	}
	s.logger.Infof("Daily run scheduled at %q", spec)
	return nil
}

func (s *Scheduler) fire() {
	if _, err := s.svc.Run(context.Background(), s.svc.Today(), notification.Options{Trigger: "cron"}); err != nil {
		s.logger.Errorf("Scheduled run failed: %v", err)
	}
}

func (s *Scheduler) Start() {
	s.logger.Infof("Starting scheduler")
	s.cron.Start()
}

// Stop waits up to 30s for a running pass to finish.
func (s *Scheduler) Stop() {
	s.logger.Infof("Stopping scheduler")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Infof("Scheduler stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warnf("Scheduler stop timeout reached")
	}
}
