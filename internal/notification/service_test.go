package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expiry-notifier/internal/config"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
	"expiry-notifier/pkg/email"
)

type memSource struct {
	records []models.DocumentRecord
	readErr error
	cells   map[string]any
	saves   int
}

func (m *memSource) ReadAll(context.Context) ([]models.DocumentRecord, error) {
	return m.records, m.readErr
}

func (m *memSource) WriteCell(row int, header string, value any) error {
	if m.cells == nil {
		m.cells = map[string]any{}
	}
	m.cells[fmt.Sprintf("%d/%s", row, header)] = value
	return nil
}

func (m *memSource) Save() error {
	m.saves++
	return nil
}

type memState struct {
	last  string
	marks map[models.WatermarkKey]models.Watermark
}

func (m *memState) LastRunDate(context.Context) (string, error) { return m.last, nil }

func (m *memState) SetLastRunDate(_ context.Context, date string) error {
	m.last = date
	return nil
}

func (m *memState) GetWatermark(_ context.Context, key models.WatermarkKey) (models.Watermark, bool, error) {
	wm, ok := m.marks[key]
	return wm, ok, nil
}

func (m *memState) SetWatermark(_ context.Context, key models.WatermarkKey, wm models.Watermark) error {
	if m.marks == nil {
		m.marks = map[models.WatermarkKey]models.Watermark{}
	}
	m.marks[key] = wm
	return nil
}

type memAudit struct {
	entries []models.AuditEntry
}

func (m *memAudit) Append(_ context.Context, entries ...models.AuditEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []email.Message
	failTo map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("smtp: 550 mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) digests() []email.Message {
	var out []email.Message
	for _, m := range f.sent {
		if strings.HasPrefix(m.Subject, "Document expiry summary") {
			out = append(out, m)
		}
	}
	return out
}

type recordingPublisher struct{ events []Event }

func (r *recordingPublisher) Publish(e Event) { r.events = append(r.events, e) }

var runDay = time.Date(2026, time.October, 16, 7, 0, 0, 0, time.UTC)

func at(offset int) string {
	return runDay.AddDate(0, 0, offset).Format(expiry.DayLayout)
}

func register() []models.DocumentRecord {
	rec := func(row int, id string, f ...models.DateField) models.DocumentRecord {
		return models.DocumentRecord{Row: row, ID: id, Label: "Tipper", Fields: f}
	}
	ins := func(raw string) models.DateField { return models.DateField{DocumentType: "Insurance", Raw: raw} }
	return []models.DocumentRecord{
		rec(2, "EQ-003", ins(at(2))),
		rec(3, "EQ-006", ins(at(-40))),
		rec(4, "EQ-007", ins(at(-10))),
		rec(5, "EQ-014", ins(at(14))),
		rec(6, "EQ-100", ins(at(90))),
		rec(7, "", ins(at(1))),
	}
}

func testSettings() config.Settings {
	return config.Settings{
		Recipients:      []string{"ops@example.com", "fleet@example.com"},
		Thresholds:      map[int]bool{30: true, 14: true, 7: true, 1: true},
		DailySummary:    true,
		GraceDays:       30,
		RetentionDays:   30,
		ThresholdPolicy: config.PolicyWindow,
		Messaging:       config.Messaging{Provider: config.ProviderNone},
	}
}

type harness struct {
	svc      *Service
	source   *memSource
	state    *memState
	audit    *memAudit
	mailer   *fakeMailer
	events   *recordingPublisher
	settings config.Settings
	setErr   error
}

func newHarness() *harness {
	h := &harness{
		source:   &memSource{records: register()},
		state:    &memState{},
		audit:    &memAudit{},
		mailer:   &fakeMailer{},
		events:   &recordingPublisher{},
		settings: testSettings(),
	}
	var cfg config.Config
	cfg.Sheet.StatusColumn = "Status"
	cfg.Sheet.DaysLeftColumn = "Days Left"
	h.svc = New(Deps{
		Config: cfg,
		Source: h.source,
		State:  h.state,
		Audit:  h.audit,
		Mailer: h.mailer,
		Events: h.events,
		Logger: logging.NewNop(),
		LoadSettings: func() (config.Settings, error) {
			return h.settings, h.setErr
		},
	})
	return h
}

func TestRun_SecondCallSameDayIsNoop(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	rep, err := h.svc.Run(ctx, runDay, Options{})
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Equal(t, 6, rep.Records)
	assert.Equal(t, 4, rep.Candidates)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "2026-10-16", h.state.last)

	sentAfterFirst := len(h.mailer.sent)
	auditAfterFirst := len(h.audit.entries)
	require.Len(t, h.mailer.digests(), 2)
	// 4 candidates x 2 recipients, plus 4 alerts x 2 recipients
	assert.Equal(t, 16, auditAfterFirst)

	rep, err = h.svc.Run(ctx, runDay.Add(6*time.Hour), Options{})
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Len(t, h.mailer.sent, sentAfterFirst)
	assert.Len(t, h.audit.entries, auditAfterFirst)
	assert.Equal(t, 1, h.source.saves)
}

func TestRun_DigestContent(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)

	d := h.mailer.digests()[0]
	assert.Equal(t, "ops@example.com", d.To)
	assert.Equal(t, "Document expiry summary - 16 Oct 2026 (4 items)", d.Subject)
	assert.Contains(t, d.Text, "EQ-003 Tipper: Insurance 18 Oct 2026 (2 day(s) left)")

	past := strings.Index(d.Text, "Expired (past grace period)")
	grace := strings.Index(d.Text, "Expired (within grace period)")
	soon := strings.Index(d.Text, "Close to expiry")
	assert.True(t, past >= 0 && past < grace && grace < soon, d.Text)
	assert.NotContains(t, d.Text, "EQ-100")
	assert.Contains(t, d.HTML, "<td>EQ-014</td>")
}

func TestRun_AlertsFireOncePerWindow(t *testing.T) {
	h := newHarness()
	rep, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Alerts.Matched)
	assert.Equal(t, 4, rep.Alerts.Sent)

	rep, err = h.svc.Run(context.Background(), runDay.AddDate(0, 0, 1), Options{})
	require.NoError(t, err)
	// EQ-003 is now at 1 day, a new window; the rest are still covered
	assert.Equal(t, 1, rep.Alerts.Sent)
	assert.Equal(t, 3, rep.Alerts.Suppressed)
}

func TestRun_RecipientFailureIsIsolated(t *testing.T) {
	h := newHarness()
	h.mailer.failTo = map[string]bool{"ops@example.com": true}

	rep, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, models.StatusFailed, rep.Results[0].Status)
	assert.Contains(t, rep.Results[0].Error, "550")
	assert.Equal(t, models.StatusSent, rep.Results[1].Status)
	assert.Equal(t, "2026-10-16", h.state.last, "failed sends still complete the pass")

	failed := 0
	for _, e := range h.audit.entries {
		if e.Kind == models.KindDigest && e.Status == models.StatusFailed {
			failed++
			assert.Equal(t, "ops@example.com", e.Recipient)
		}
	}
	assert.Equal(t, 4, failed)
	// alerts still count as sent because fleet@ took them
	assert.Equal(t, 4, rep.Alerts.Sent)
}

func TestRun_MissingSettingsAborts(t *testing.T) {
	h := newHarness()
	h.setErr = fmt.Errorf("%w: [NOTIFY_EMAIL]", config.ErrMissingConfig)

	_, err := h.svc.Run(context.Background(), runDay, Options{})
	require.ErrorIs(t, err, config.ErrMissingConfig)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.source.cells)
	assert.Zero(t, h.source.saves)
	assert.Empty(t, h.state.last)
	assert.Equal(t, EventRunFailed, h.events.events[len(h.events.events)-1].Type)
}

func TestRun_SourceErrorAborts(t *testing.T) {
	h := newHarness()
	h.source.readErr = errors.New("missing required column: [Insurance Expiry]")

	_, err := h.svc.Run(context.Background(), runDay, Options{})
	require.Error(t, err)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.state.last)
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness()
	h.state.last = "2026-10-16"

	rep, err := h.svc.Run(context.Background(), runDay, Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	require.Len(t, rep.Previews, 2)
	assert.Equal(t, models.BucketPastGrace, rep.Previews[0].Sections[0].Bucket)
	assert.Contains(t, rep.Previews[0].Body, "EQ-006")

	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.audit.entries)
	assert.Empty(t, h.source.cells)
	assert.Zero(t, h.source.saves)
	assert.Empty(t, h.state.marks)
}

func TestRun_Force(t *testing.T) {
	h := newHarness()
	h.state.last = "2026-10-16"

	rep, err := h.svc.Run(context.Background(), runDay, Options{Force: true})
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Len(t, h.mailer.digests(), 2)
}

func TestRun_DailySummaryDisabled(t *testing.T) {
	h := newHarness()
	h.settings.DailySummary = false

	rep, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Results)
	assert.Empty(t, h.mailer.digests())
	assert.Equal(t, 4, rep.Alerts.Sent)
}

func TestRun_StatusWriteback(t *testing.T) {
	h := newHarness()
	rep, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.StatusUpdates)

	assert.Equal(t, "CRITICAL", h.source.cells["2/Status"])
	assert.Equal(t, 2, h.source.cells["2/Days Left"])
	assert.Equal(t, "EXPIRED", h.source.cells["3/Status"])
	assert.Equal(t, "URGENT", h.source.cells["5/Status"])
	assert.Equal(t, "OK", h.source.cells["6/Status"])
	assert.NotContains(t, h.source.cells, "7/Status")
}

func TestRun_ChatChannel(t *testing.T) {
	h := newHarness()
	chat := &fakeChat{}
	h.svc.chat = func(config.Messaging) (Chat, error) { return chat, nil }

	rep, err := h.svc.Run(context.Background(), runDay, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)
	assert.Equal(t, "+15550100", rep.Results[2].Recipient)
	// one summary plus one message per alert
	require.Len(t, chat.sent, 5)
	assert.Contains(t, chat.sent[0], "Expiry summary 16 Oct 2026")
}

type fakeChat struct{ sent []string }

func (f *fakeChat) Name() string        { return "test-chat" }
func (f *fakeChat) Destination() string { return "+15550100" }
func (f *fakeChat) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}
