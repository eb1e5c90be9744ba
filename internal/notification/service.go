// Package notification runs the daily pass: it reads the register, evaluates
// every document, writes statuses back, mails the digests, fires threshold
// alerts and records the outcome.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/config"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
	"expiry-notifier/internal/runguard"
)

// Source is the register the pass reads and writes back to.
type Source interface {
	ReadAll(ctx context.Context) ([]models.DocumentRecord, error)
	WriteCell(row int, header string, value any) error
	Save() error
}

// StateStore persists the run guard date and the alert watermarks.
type StateStore interface {
	runguard.Store
	alert.WatermarkStore
}

// Event is published for every run milestone.
type Event struct {
	Type  string    `json:"type"`
	RunID string    `json:"run_id"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

// Publisher receives run events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Event types.
const (
	EventRunStarted   = "run.started"
	EventRunSkipped   = "run.skipped"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Options alters a single pass.
type Options struct {
	// Force ignores the run guard. The pass is still marked as done.
	Force bool
	// DryRun evaluates and renders without sending, writing or touching
	// the run guard.
	DryRun bool
	// Trigger names what started the pass, for logs and events.
	Trigger string
}

// Preview is a rendered digest that a dry run would have sent.
type Preview struct {
	Recipient string           `json:"recipient"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	Sections  []PreviewSection `json:"sections"`
}

// PreviewSection lists the candidates of one bucket.
type PreviewSection struct {
	Bucket     models.Bucket      `json:"bucket"`
	Candidates []models.Candidate `json:"candidates"`
}

// Report describes what a pass did.
type Report struct {
	RunID         string                  `json:"run_id"`
	Date          string                  `json:"date"`
	Trigger       string                  `json:"trigger,omitempty"`
	Skipped       bool                    `json:"skipped"`
	DryRun        bool                    `json:"dry_run"`
	Records       int                     `json:"records"`
	Candidates    int                     `json:"candidates"`
	StatusUpdates int                     `json:"status_updates"`
	Results       []models.DispatchResult `json:"results,omitempty"`
	Alerts        alert.Summary           `json:"alerts"`
	Previews      []Preview               `json:"previews,omitempty"`
	SaveError     string                  `json:"save_error,omitempty"`
	Duration      time.Duration           `json:"duration"`
}

// ChatFactory builds the chat channel for the current settings. It returns
// nil when messaging is disabled.
type ChatFactory func(config.Messaging) (Chat, error)

// Deps are the collaborators of a Service.
type Deps struct {
	Config       config.Config
	Source       Source
	State        StateStore
	Audit        alert.AuditSink
	Mailer       Mailer
	Chat         ChatFactory
	Events       Publisher
	Logger       *logging.Logger
	LoadSettings func() (config.Settings, error)
}

// Service runs notification passes. Passes are serialized within the
// process; see package runguard for the cross-process caveat.
type Service struct {
	cfg          config.Config
	source       Source
	state        StateStore
	guard        *runguard.Guard
	audit        alert.AuditSink
	mailer       Mailer
	chat         ChatFactory
	events       Publisher
	logger       *logging.Logger
	loadSettings func() (config.Settings, error)

	mu sync.Mutex
}

// New constructs a Service. LoadSettings defaults to reading the configured
// settings file.
func New(d Deps) *Service {
	s := &Service{
		cfg:          d.Config,
		source:       d.Source,
		state:        d.State,
		guard:        runguard.New(d.State),
		audit:        d.Audit,
		mailer:       d.Mailer,
		chat:         d.Chat,
		events:       d.Events,
		logger:       d.Logger,
		loadSettings: d.LoadSettings,
	}
	if s.loadSettings == nil {
		path := d.Config.SettingsFile
		s.loadSettings = func() (config.Settings, error) { return config.LoadSettings(path) }
	}
	if s.chat == nil {
		s.chat = func(config.Messaging) (Chat, error) { return nil, nil }
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	return s
}

// Logger exposes the Service's logger to triggers.
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Today returns the current calendar day in the configured time zone.
func (s *Service) Today() time.Time {
	loc := s.cfg.Schedule.Location
	if loc == nil {
		loc = time.Local
	}
	return expiry.Midnight(time.Now().In(loc))
}

// Run performs one pass for today. Configuration problems abort before
// anything is written or sent. Send failures are reported in the Report and
// never fail the pass.
func (s *Service) Run(ctx context.Context, today time.Time, opts Options) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	runID := uuid.New()
	today = expiry.Midnight(today)
	rep := Report{
		RunID:   runID.String(),
		Date:    today.Format(expiry.DayLayout),
		Trigger: opts.Trigger,
		DryRun:  opts.DryRun,
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": rep.RunID, "date": rep.Date, "trigger": opts.Trigger})

	rep, err := s.run(ctx, log, runID, today, opts, rep)
	rep.Duration = time.Since(start)

	switch {
	case err != nil:
		runsTotal.WithLabelValues("failed").Inc()
		log.Errorf("Run aborted: %v", err)
		s.publish(EventRunFailed, runID, err.Error())
	case rep.Skipped:
		runsTotal.WithLabelValues("skipped").Inc()
		log.Infof("Run skipped, already completed today")
		s.publish(EventRunSkipped, runID, rep)
	default:
		runsTotal.WithLabelValues("completed").Inc()
		if !opts.DryRun {
			runDuration.Observe(rep.Duration.Seconds())
		}
		log.Infof("Run finished in %s: %d records, %d candidates, %d digests, alerts %+v",
			rep.Duration.Round(time.Millisecond), rep.Records, rep.Candidates, len(rep.Results), rep.Alerts)
		s.publish(EventRunCompleted, runID, rep)
	}
	return rep, err
}

func (s *Service) run(ctx context.Context, log *logrus.Entry, runID uuid.UUID, today time.Time, opts Options, rep Report) (Report, error) {
	settings, err := s.loadSettings()
	if err != nil {
		return rep, err
	}

	if !opts.DryRun && !opts.Force {
		ok, err := s.guard.ShouldRun(ctx, today)
		if err != nil {
			return rep, err
		}
		if !ok {
			rep.Skipped = true
			return rep, nil
		}
	}
	s.publish(EventRunStarted, runID, map[string]any{"date": rep.Date, "dry_run": opts.DryRun, "force": opts.Force})

	records, err := s.source.ReadAll(ctx)
	if err != nil {
		return rep, err
	}
	rep.Records = len(records)

	processor := expiry.NewProcessor(expiry.Policy{GraceDays: settings.GraceDays, RetentionDays: settings.RetentionDays})
	candidates := processor.Process(records, today)
	rep.Candidates = len(candidates)
	digests := expiry.Aggregate(candidates, settings.Recipients)

	if opts.DryRun {
		rep.Previews, err = previews(digests, today)
		return rep, err
	}

	observeBuckets(candidates)
	rep.StatusUpdates = s.writeStatuses(log, processor, records, today)

	chat, err := s.chat(settings.Messaging)
	if err != nil {
		log.Errorf("Chat channel unavailable, continuing with email only: %v", err)
		chat = nil
	}

	if settings.DailySummary {
		rep.Results = NewDispatcher(s.mailer, chat, s.audit, s.logger).DispatchAll(ctx, runID, digests, today)
	} else {
		log.Infof("Daily summary disabled, %d digests not sent", len(digests))
	}

	engine := alert.NewEngine(processor, NewAlertNotifier(s.mailer, chat, settings.Recipients), s.state, s.audit, s.logger, alert.Options{
		Thresholds: settings.EnabledThresholds(),
		Policy:     alert.Policy(settings.ThresholdPolicy),
	})
	rep.Alerts = engine.Run(ctx, runID, records, today)

	if err := s.source.Save(); err != nil {
		rep.SaveError = err.Error()
		log.Errorf("Saving register failed, statuses and log rows are lost: %v", err)
	}

	// every send has been attempted; a lost mark would mean a second round
	if err := s.guard.MarkRan(ctx, today); err != nil {
		return rep, err
	}
	return rep, nil
}

// writeStatuses fills the status and days-left columns from each row's most
// urgent field. Rows without a usable date get blank cells.
func (s *Service) writeStatuses(log *logrus.Entry, p *expiry.Processor, records []models.DocumentRecord, today time.Time) int {
	if s.cfg.Sheet.StatusColumn == "" && s.cfg.Sheet.DaysLeftColumn == "" {
		return 0
	}
	n := 0
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		var status, days any = "", ""
		if st, d, ok := p.RowStatus(rec, today); ok {
			status, days = string(st), d
		}
		err := errors.Join(
			s.source.WriteCell(rec.Row, s.cfg.Sheet.StatusColumn, status),
			s.source.WriteCell(rec.Row, s.cfg.Sheet.DaysLeftColumn, days),
		)
		if err != nil {
			log.Warnf("Status writeback for row %d (%s) failed: %v", rec.Row, rec.ID, err)
			continue
		}
		n++
	}
	return n
}

func (s *Service) publish(typ string, runID uuid.UUID, data any) {
	s.events.Publish(Event{Type: typ, RunID: runID.String(), Time: time.Now(), Data: data})
}

func previews(digests []expiry.Digest, today time.Time) ([]Preview, error) {
	out := make([]Preview, 0, len(digests))
	for _, d := range digests {
		body, err := RenderText(d, today)
		if err != nil {
			return nil, fmt.Errorf("preview for %s: %w", d.Recipient, err)
		}
		p := Preview{Recipient: d.Recipient, Subject: Subject(today, d.Count()), Body: body}
		for _, sec := range d.Sections {
			p.Sections = append(p.Sections, PreviewSection{Bucket: sec.Bucket, Candidates: sec.Candidates})
		}
		out = append(out, p)
	}
	return out, nil
}

func observeBuckets(candidates []models.Candidate) {
	counts := make(map[models.Bucket]int, len(models.BucketOrder))
	for _, c := range candidates {
		counts[c.Bucket]++
	}
	for _, b := range models.BucketOrder {
		candidatesGauge.WithLabelValues(string(b)).Set(float64(counts[b]))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
