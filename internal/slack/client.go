package slack

import (
	"context"
	"log"

	"github.com/slack-go/slack"
)

// Client posts operator diagnostics to Slack. With no token configured it
// degrades to a no-op so the bot runs without Slack at all.
type Client struct {
	client         *slack.Client
	channelID      string
	errorChannelID string
	enabled        bool
}

func NewClient(token, channelID, errorChannelID string) *Client {
	if token == "" {
		return &Client{enabled: false}
	}

	return &Client{
		client:         slack.New(token),
		channelID:      channelID,
		errorChannelID: errorChannelID,
		enabled:        true,
	}
}

// Enabled reports whether diagnostics actually go anywhere.
func (c *Client) Enabled() bool {
	return c.enabled
}

// PostMessage sends a message to the diagnostics channel.
func (c *Client) PostMessage(ctx context.Context, message string) error {
	return c.postToChannel(ctx, c.channelID, message)
}

// PostErrorMessage sends a message to the error channel. Reconciliation
// failures and recovered panics land here.
func (c *Client) PostErrorMessage(ctx context.Context, message string) error {
	return c.postToChannel(ctx, c.errorChannelID, message)
}

// PostErrorAsync fires an error notification without blocking the message
// path.
func (c *Client) PostErrorAsync(ctx context.Context, message string) {
	if !c.enabled {
		return
	}
	go func() {
		if err := c.PostErrorMessage(ctx, message); err != nil {
			log.Printf("ошибка асинхронной отправки в Slack: %v", err)
		}
	}()
}

func (c *Client) postToChannel(ctx context.Context, channelID, message string) error {
	if !c.enabled {
		log.Printf("уведомление в Slack пропущено (токен не настроен)")
		return nil
	}

	if message == "" {
		return nil
	}

	_, _, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(message, false))
	if err != nil {
		log.Printf("ошибка отправки в Slack: %v", err)
		return err
	}

	return nil
}
