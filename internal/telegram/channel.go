// Package telegram is the inbound channel adapter: it turns Telegram
// updates into queue rows and delivers outbound replies.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/store"
)

// Channel long-polls the Bot API and enqueues every update as raw JSON.
// No filtering happens here; the worker owns payload validation.
type Channel struct {
	bot      *telego.Bot
	messages store.MessageStore
}

func NewChannel(cfg config.TelegramConfig, messages store.MessageStore) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{bot: bot, messages: messages}, nil
}

// Bot exposes the underlying client for the Sender.
func (c *Channel) Bot() *telego.Bot { return c.bot }

// Run long-polls until ctx is cancelled, enqueuing each update.
func (c *Channel) Run(ctx context.Context) error {
	slog.Info("starting telegram channel (polling mode)")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	slog.Info("telegram bot connected", "username", c.bot.Username())

	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram channel stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				slog.Info("telegram updates channel closed")
				return nil
			}
			c.enqueue(ctx, update)
		}
	}
}

func (c *Channel) enqueue(ctx context.Context, update telego.Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		slog.Error("marshal update failed", "update", update.UpdateID, "error", err)
		return
	}
	id, err := c.messages.Enqueue(ctx, string(payload))
	if err != nil {
		slog.Error("enqueue update failed", "update", update.UpdateID, "error", err)
		return
	}
	slog.Debug("update enqueued", "update", update.UpdateID, "message", id)
}
