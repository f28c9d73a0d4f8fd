package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "gradewatch/pkg/logx"
)

// Telegram sends notifications to a single chat. Send-only: no poller, no
// inbound update handling.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegram(token string, chatID int64, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: strings.TrimSpace(token)})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, msg Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	text := msg.Title + "\n\n" + msg.Body
	if msg.Priority == PriorityHigh {
		text = "🚨 " + text
	}
	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
