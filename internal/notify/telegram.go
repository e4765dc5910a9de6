package notify

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Telegram sends through the Bot API. Forum routing uses reply-to-thread-root
// semantics, same as the rest of the system.
type Telegram struct {
	bot          *tgbotapi.BotAPI
	dismissAfter time.Duration
}

func NewTelegram(bot *tgbotapi.BotAPI, dismissAfter time.Duration) *Telegram {
	return &Telegram{bot: bot, dismissAfter: dismissAfter}
}

func (t *Telegram) Reply(chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) ReplyEphemeral(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := t.bot.Send(msg)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("ephemeral reply failed")
		return
	}
	time.AfterFunc(t.dismissAfter, func() {
		if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, sent.MessageID)); err != nil {
			log.Debug().Err(err).Int("message_id", sent.MessageID).Msg("ephemeral delete failed")
		}
	})
}

func (t *Telegram) Send(chatID int64, threadID int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = threadID
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) Edit(chatID int64, messageID int, text string) error {
	_, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (t *Telegram) SendVideo(chatID int64, threadID int, path, caption string) error {
	v := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	v.Caption = caption
	v.ReplyToMessageID = threadID
	_, err := t.bot.Send(v)
	return err
}
