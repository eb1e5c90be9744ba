// Package providers builds the delivery channels selected in the settings
// store.
package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"expiry-notifier/internal/config"
	"expiry-notifier/pkg/sms"
	"expiry-notifier/pkg/telegram"
)

// Chat is a short-message channel with a single fixed destination.
type Chat interface {
	Name() string
	Destination() string
	Send(ctx context.Context, text string) error
}

// NewChat returns the chat channel configured in m, or nil when messaging
// is disabled. Every channel is rate limited to perSecond messages.
func NewChat(m config.Messaging, perSecond int) (Chat, error) {
	var c Chat
	switch m.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderCallMeBot:
		c = &gatewayChat{phone: m.Phone, gw: sms.NewGateway(m.APIURL, m.Phone, m.APIKey, nil)}
	case config.ProviderTwilio:
		c = &twilioChat{phone: m.Phone, tw: sms.NewTwilio(m.TwilioAccountSID, m.TwilioAuthToken, m.TwilioFrom)}
	case config.ProviderTelegram:
		tg, err := telegram.New(m.TelegramBotToken, m.TelegramChatID)
		if err != nil {
			return nil, err
		}
		c = &telegramChat{chatID: m.TelegramChatID, tg: tg}
	default:
		return nil, fmt.Errorf("unknown messaging provider %q", m.Provider)
	}
	return Limit(c, perSecond), nil
}

// Limit wraps c so that Send waits for a token from a limiter allowing
// perSecond messages per second. perSecond <= 0 disables the limit.
func Limit(c Chat, perSecond int) Chat {
	if perSecond <= 0 {
		return c
	}
	return &limitedChat{Chat: c, limiter: rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond)}
}

type limitedChat struct {
	Chat
	limiter *rate.Limiter
}

func (l *limitedChat) Send(ctx context.Context, text string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", l.Name(), err)
	}
	return l.Chat.Send(ctx, text)
}

type gatewayChat struct {
	phone string
	gw    *sms.Gateway
}

func (g *gatewayChat) Name() string        { return config.ProviderCallMeBot }
func (g *gatewayChat) Destination() string { return g.phone }
func (g *gatewayChat) Send(ctx context.Context, text string) error {
	return g.gw.Send(ctx, text)
}

type twilioChat struct {
	phone string
	tw    *sms.Twilio
}

func (t *twilioChat) Name() string        { return config.ProviderTwilio }
func (t *twilioChat) Destination() string { return t.phone }
func (t *twilioChat) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.tw.Send(t.phone, text)
}

type telegramChat struct {
	chatID string
	tg     *telegram.Client
}

func (t *telegramChat) Name() string        { return config.ProviderTelegram }
func (t *telegramChat) Destination() string { return t.chatID }
func (t *telegramChat) Send(ctx context.Context, text string) error {
	return t.tg.Send(ctx, text)
}
