// Package telegram posts messages to a chat through the Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
)

// Client sends to one chat.
type Client struct {
	bot    *bot.Bot
	chatID any
}

// New returns a Client for chatID, which is either a numeric ID or an
// "@channel" username. Extra bot options are passed through.
func New(token, chatID string, opts ...bot.Option) (*Client, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &Client{bot: b, chatID: parseChatID(chatID)}, nil
}

// Send posts text as a plain message.
func (c *Client) Send(ctx context.Context, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send Telegram message to chat %v: %w", c.chatID, err)
	}
	return nil
}

func parseChatID(s string) any {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return s
}
