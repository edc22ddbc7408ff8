package alert

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/schema"
	"hft/pkg/exception"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts as chat messages from a bot.
type Telegram struct {
	bot    botSender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(exception.ErrAuthentication, "init telegram bot").With("error", err)
	}
	logs.Infof("telegram notifier authorized as %s", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Notify(_ context.Context, a schema.Alert) error {
	msg := tgbotapi.NewMessage(t.chatID, title(a)+"\n"+body(a))
	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(exception.ErrHTTP, "telegram send").With("chat_id", t.chatID, "error", err)
	}
	return nil
}
