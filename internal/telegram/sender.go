package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"
)

// Bot API allows roughly 30 messages/second across chats.
const (
	defaultSendRate  = 25
	defaultSendBurst = 5
)

// Sender delivers outbound messages through the Bot API with a global
// rate limit. Implements the tools.Sender interface.
type Sender struct {
	bot     *telego.Bot
	limiter *rate.Limiter
}

func NewSender(bot *telego.Bot, perSecond float64, burst int) *Sender {
	if perSecond <= 0 {
		perSecond = defaultSendRate
	}
	if burst <= 0 {
		burst = defaultSendBurst
	}
	return &Sender{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *Sender) Send(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(id), text)); err != nil {
		return fmt.Errorf("send to chat %s: %w", chatID, err)
	}
	return nil
}
