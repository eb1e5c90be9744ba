package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
	"expiry-notifier/pkg/email"
)

// ChannelEmail is the channel name recorded for mail deliveries.
const ChannelEmail = "email"

// Mailer sends a single mail message.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// Chat is the optional short-message channel.
type Chat interface {
	Name() string
	Destination() string
	Send(ctx context.Context, text string) error
}

// Dispatcher sends rendered digests and records one audit entry per
// (document, recipient) pair. A failing recipient never stops the others.
type Dispatcher struct {
	mailer Mailer
	chat   Chat
	audit  alert.AuditSink
	logger *logging.Logger
	now    func() time.Time
}

// NewDispatcher returns a Dispatcher. chat may be nil.
func NewDispatcher(mailer Mailer, chat Chat, audit alert.AuditSink, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, chat: chat, audit: audit, logger: logger, now: time.Now}
}

// DispatchAll sends every digest and, when a chat channel is set, one chat
// summary built from the first digest (all digests carry the same items).
func (d *Dispatcher) DispatchAll(ctx context.Context, runID uuid.UUID, digests []expiry.Digest, today time.Time) []models.DispatchResult {
	results := make([]models.DispatchResult, 0, len(digests)+1)
	for _, dg := range digests {
		results = append(results, d.Dispatch(ctx, runID, dg, today))
	}
	if d.chat != nil && len(digests) > 0 {
		results = append(results, d.dispatchChat(ctx, runID, digests[0], today))
	}
	return results
}

// Dispatch mails one digest to its recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, runID uuid.UUID, dg expiry.Digest, today time.Time) models.DispatchResult {
	text, err := RenderText(dg, today)
	if err == nil {
		var html string
		html, err = RenderHTML(dg, today)
		if err == nil {
			err = d.mailer.Send(ctx, email.Message{
				To:      dg.Recipient,
				Subject: Subject(today, dg.Count()),
				Text:    text,
				HTML:    html,
			})
		}
	}
	return d.finish(ctx, runID, dg, dg.Recipient, ChannelEmail, err)
}

func (d *Dispatcher) dispatchChat(ctx context.Context, runID uuid.UUID, dg expiry.Digest, today time.Time) models.DispatchResult {
	err := d.chat.Send(ctx, ChatSummary(dg, today))
	return d.finish(ctx, runID, dg, d.chat.Destination(), d.chat.Name(), err)
}

func (d *Dispatcher) finish(ctx context.Context, runID uuid.UUID, dg expiry.Digest, recipient, channel string, err error) models.DispatchResult {
	res := models.DispatchResult{Recipient: recipient, Status: models.StatusSent, Documents: dg.Count()}
	if err != nil {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		d.logger.Errorf("Digest via %s to %s failed: %v", channel, recipient, err)
	} else {
		d.logger.Infof("Digest via %s to %s sent (%d documents)", channel, recipient, res.Documents)
	}
	dispatchTotal.WithLabelValues(models.KindDigest, channel, string(res.Status)).Inc()

	now := d.now()
	entries := make([]models.AuditEntry, 0, res.Documents)
	for _, c := range dg.Candidates() {
		entries = append(entries, models.AuditEntry{
			ID:           uuid.New(),
			RunID:        runID,
			Timestamp:    now,
			Kind:         models.KindDigest,
			DocumentID:   c.RecordID,
			DocumentType: c.DocumentType,
			DaysLeft:     c.DaysLeft,
			Recipient:    recipient,
			Channel:      channel,
			Status:       res.Status,
			Error:        res.Error,
		})
	}
	if err := d.audit.Append(ctx, entries...); err != nil {
		d.logger.Errorf("Append digest audit entries for %s failed: %v", recipient, err)
	}
	return res
}
