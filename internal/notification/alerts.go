package notification

import (
	"context"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/models"
	"expiry-notifier/pkg/email"
)

// AlertNotifier delivers threshold alerts by mail to every recipient and to
// the chat channel when one is configured.
type AlertNotifier struct {
	mailer     Mailer
	chat       Chat
	recipients []string
}

// NewAlertNotifier returns an AlertNotifier. chat may be nil.
func NewAlertNotifier(mailer Mailer, chat Chat, recipients []string) *AlertNotifier {
	return &AlertNotifier{mailer: mailer, chat: chat, recipients: expiry.Recipients(recipients)}
}

// SendAlert mails a to every recipient and posts it to the chat channel. Each
// destination is attempted independently and reported in its own Delivery.
func (n *AlertNotifier) SendAlert(ctx context.Context, a alert.Alert) []alert.Delivery {
	text := AlertText(a)
	deliveries := make([]alert.Delivery, 0, len(n.recipients)+1)
	for _, r := range n.recipients {
		err := n.mailer.Send(ctx, email.Message{To: r, Subject: AlertSubject(a), Text: text})
		dispatchTotal.WithLabelValues(models.KindAlert, ChannelEmail, outcome(err)).Inc()
		deliveries = append(deliveries, alert.Delivery{Channel: ChannelEmail, Recipient: r, Err: err})
	}
	if n.chat != nil {
		err := n.chat.Send(ctx, AlertSubject(a)+"\n"+text)
		dispatchTotal.WithLabelValues(models.KindAlert, n.chat.Name(), outcome(err)).Inc()
		deliveries = append(deliveries, alert.Delivery{Channel: n.chat.Name(), Recipient: n.chat.Destination(), Err: err})
	}
	return deliveries
}

func outcome(err error) string {
	if err != nil {
		return string(models.StatusFailed)
	}
	return string(models.StatusSent)
}
