// Package alert sends one-off alerts when a document crosses a days-left
// threshold. It complements the daily digest: the digest lists everything
// due, an alert announces a single document reaching 30, 14, 7 or 1 days.
package alert

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
)

// Policy decides how days left is matched against thresholds.
type Policy string

const (
	// PolicyExact fires only on the day daysLeft equals a threshold. A day
	// without a run loses that alert for good.
	PolicyExact Policy = "exact"
	// PolicyWindow fires once when daysLeft enters the interval
	// (next lower threshold, threshold], and once more when overdue.
	PolicyWindow Policy = "window"
)

// OverdueThreshold is the threshold value reported for overdue alerts.
const OverdueThreshold = 0

// Alert is one document field crossing a threshold.
type Alert struct {
	RecordID     string
	Label        string
	Plant        string
	Location     string
	DocumentType string
	Date         time.Time
	DateDisplay  string
	DaysLeft     int
	Threshold    int
}

// Overdue reports whether the alert is for an already expired document.
func (a Alert) Overdue() bool {
	return a.DaysLeft <= 0
}

// Delivery is the outcome of sending an alert to one destination.
type Delivery struct {
	Channel   string
	Recipient string
	Err       error
}

// Notifier delivers an alert over every configured channel and reports each
// destination separately.
type Notifier interface {
	SendAlert(ctx context.Context, a Alert) []Delivery
}

// WatermarkStore persists the last alert sent per document field.
type WatermarkStore interface {
	GetWatermark(ctx context.Context, key models.WatermarkKey) (models.Watermark, bool, error)
	SetWatermark(ctx context.Context, key models.WatermarkKey, wm models.Watermark) error
}

// AuditSink receives one entry per delivery.
type AuditSink interface {
	Append(ctx context.Context, entries ...models.AuditEntry) error
}

// Options configures an Engine.
type Options struct {
	Thresholds []int
	Policy     Policy
}

// Summary counts what a Run did.
type Summary struct {
	Matched    int `json:"matched"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
}

// Engine evaluates register rows against the enabled thresholds.
type Engine struct {
	processor  *expiry.Processor
	notifier   Notifier
	store      WatermarkStore
	audit      AuditSink
	logger     *logging.Logger
	thresholds []int
	policy     Policy
	now        func() time.Time
}

// NewEngine builds an Engine. Thresholds are de-duplicated and sorted
// largest first; non-positive values are dropped.
func NewEngine(processor *expiry.Processor, notifier Notifier, store WatermarkStore, audit AuditSink, logger *logging.Logger, opts Options) *Engine {
	seen := map[int]bool{}
	var ts []int
	for _, t := range opts.Thresholds {
		if t > 0 && !seen[t] {
			seen[t] = true
			ts = append(ts, t)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ts)))

	policy := opts.Policy
	if policy == "" {
		policy = PolicyWindow
	}
	return &Engine{
		processor:  processor,
		notifier:   notifier,
		store:      store,
		audit:      audit,
		logger:     logger,
		thresholds: ts,
		policy:     policy,
		now:        time.Now,
	}
}

// Thresholds returns the enabled thresholds, largest first.
func (e *Engine) Thresholds() []int {
	return append([]int(nil), e.thresholds...)
}

// Match returns the threshold daysLeft falls on under the engine's policy.
// Thresholds are checked largest first and the first hit wins.
func (e *Engine) Match(daysLeft int) (int, bool) {
	if len(e.thresholds) == 0 {
		return 0, false
	}
	if e.policy == PolicyExact {
		for _, t := range e.thresholds {
			if daysLeft == t {
				return t, true
			}
		}
		return 0, false
	}

	if daysLeft <= 0 {
		return OverdueThreshold, true
	}
	for i, t := range e.thresholds {
		lower := 0
		if i+1 < len(e.thresholds) {
			lower = e.thresholds[i+1]
		}
		if daysLeft <= t && daysLeft > lower {
			return t, true
		}
	}
	return 0, false
}

// suppressed reports whether wm already covers this alert.
func (e *Engine) suppressed(wm models.Watermark, found bool, today string, threshold int, expiryDay string) bool {
	if !found {
		return false
	}
	if wm.LastNotifiedDate == today {
		return true
	}
	if e.policy == PolicyWindow {
		return wm.Expiry == expiryDay && wm.Threshold == threshold
	}
	return false
}

// Run checks every non-excluded date field and fires at most one alert per
// field. The watermark is written only when at least one destination took
// the alert. Every delivery, failed or not, is audited in one batch once all
// fields are done.
func (e *Engine) Run(ctx context.Context, runID uuid.UUID, records []models.DocumentRecord, today time.Time) Summary {
	var sum Summary
	if len(e.thresholds) == 0 {
		return sum
	}
	todayStr := today.Format(expiry.DayLayout)
	var entries []models.AuditEntry

	for _, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			continue
		}
		for _, f := range rec.Fields {
			ev, ok := e.processor.EvaluateField(rec, f, today)
			if !ok || ev.Hold {
				continue
			}
			threshold, ok := e.Match(ev.DaysLeft)
			if !ok {
				continue
			}
			sum.Matched++

			key := models.WatermarkKey{DocumentID: id, DocumentType: f.DocumentType}
			expiryDay := ev.Date.Format(expiry.DayLayout)
			wm, found, err := e.store.GetWatermark(ctx, key)
			if err != nil {
				e.logger.Errorf("Read watermark for %s failed, skipping alert: %v", key, err)
				sum.Failed++
				continue
			}
			if e.suppressed(wm, found, todayStr, threshold, expiryDay) {
				e.logger.Debugf("Alert for %s at %d days suppressed by watermark %+v", key, threshold, wm)
				sum.Suppressed++
				continue
			}

			a := Alert{
				RecordID:     id,
				Label:        rec.Label,
				Plant:        rec.Plant,
				Location:     rec.Location,
				DocumentType: f.DocumentType,
				Date:         ev.Date,
				DateDisplay:  ev.Date.Format(expiry.DisplayLayout),
				DaysLeft:     ev.DaysLeft,
				Threshold:    threshold,
			}
			deliveries := e.notifier.SendAlert(ctx, a)

			delivered := false
			for _, d := range deliveries {
				if d.Err == nil {
					delivered = true
				}
			}
			if delivered {
				next := models.Watermark{LastNotifiedDate: todayStr, Threshold: threshold, Expiry: expiryDay}
				if err := e.store.SetWatermark(ctx, key, next); err != nil {
					e.logger.Errorf("Write watermark for %s failed: %v", key, err)
				}
				sum.Sent++
			} else {
				sum.Failed++
			}

			entries = append(entries, e.record(runID, a, deliveries)...)
		}
	}

	if len(entries) > 0 {
		if err := e.audit.Append(ctx, entries...); err != nil {
			e.logger.Errorf("Append %d alert audit entries failed: %v", len(entries), err)
		}
	}
	return sum
}

func (e *Engine) record(runID uuid.UUID, a Alert, deliveries []Delivery) []models.AuditEntry {
	if len(deliveries) == 0 {
		e.logger.Warnf("Alert for %s/%s had no delivery channel", a.RecordID, a.DocumentType)
		return nil
	}
	entries := make([]models.AuditEntry, 0, len(deliveries))
	for _, d := range deliveries {
		entry := models.AuditEntry{
			ID:           uuid.New(),
			RunID:        runID,
			Timestamp:    e.now(),
			Kind:         models.KindAlert,
			DocumentID:   a.RecordID,
			DocumentType: a.DocumentType,
			DaysLeft:     a.DaysLeft,
			Recipient:    d.Recipient,
			Channel:      d.Channel,
			Status:       models.StatusSent,
		}
		if d.Err != nil {
			entry.Status = models.StatusFailed
			entry.Error = d.Err.Error()
			e.logger.Errorf("Alert for %s/%s via %s to %s failed: %v", a.RecordID, a.DocumentType, d.Channel, d.Recipient, d.Err)
		} else {
			e.logger.Infof("Alert for %s/%s (%d days) sent via %s to %s", a.RecordID, a.DocumentType, a.DaysLeft, d.Channel, d.Recipient)
		}
		entries = append(entries, entry)
	}
	return entries
}
