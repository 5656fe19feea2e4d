package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/logger"
)

// sender is the part of the bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends events to a single chat.
type Telegram struct {
	api    sender
	chatID int64
	log    *logger.Logger
}

// NewTelegram connects to the bot API with the configured token.
func NewTelegram(cfg config.NotifyConfig, log *logger.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	log.Info("telegram notifications enabled", "bot", api.Self.UserName, "chat_id", cfg.TelegramChatID)
	return newTelegram(api, cfg.TelegramChatID, log), nil
}

func newTelegram(api sender, chatID int64, log *logger.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log.With("component", "telegram")}
}

func (t *Telegram) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, e.Message())
	if _, err := t.api.Send(msg); err != nil {
		t.log.Warn("telegram send failed", "kind", e.Kind.String(), "error", err)
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
