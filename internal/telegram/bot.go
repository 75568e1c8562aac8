// Package telegram provides the Telegram bot for rate-limit alerts and usage commands.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Bot wraps the Telegram bot API.
type Bot struct {
	api         *tgbotapi.BotAPI
	adminChatID int64
	handler     *CommandHandler
}

// New creates a Bot. Returns nil if token is empty (Telegram disabled).
func New(token string, adminChatID int64, handler *CommandHandler) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.New: %w", err)
	}
	b := &Bot{api: api, adminChatID: adminChatID, handler: handler}
	if handler != nil {
		handler.reply = b.reply
	}
	return b, nil
}

// Send sends a plain text message to the admin chat.
func (b *Bot) Send(msg string) error {
	if b == nil {
		return nil
	}
	m := tgbotapi.NewMessage(b.adminChatID, msg)
	m.ParseMode = "Markdown"
	if _, err := b.api.Send(m); err != nil {
		return fmt.Errorf("telegram.Send: %w", err)
	}
	return nil
}

// SendLimitAlert sends a rate-limit alert with a button that reports current usage.
func (b *Bot) SendLimitAlert(runID string, retryAfter time.Duration) error {
	if b == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(b.adminChatID, limitAlertText(runID, retryAfter))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Usage", callbackUsage),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Status", callbackStatus),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram.SendLimitAlert: %w", err)
	}
	return nil
}

// Start begins polling for updates. Must be called in a goroutine.
// Only processes messages from adminChatID.
func (b *Bot) Start(ctx context.Context) {
	if b == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				if update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Chat.ID != b.adminChatID {
					continue
				}
				b.handleCallback(update.CallbackQuery)
				continue
			}
			if update.Message == nil || update.Message.Chat.ID != b.adminChatID {
				continue
			}
			if b.handler != nil {
				b.handler.Handle(update.Message)
			}
		}
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	if b.handler != nil {
		b.handler.HandleCallback(query.Data, b.adminChatID)
	}
	ack := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		log.Warnf("telegram: ack callback: %v", err)
	}
}

// reply sends a text reply to a chat.
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Warnf("telegram.reply: %v", err)
	}
}

func limitAlertText(runID string, retryAfter time.Duration) string {
	text := "⚠️ *Gemini free-tier limit reached*\n\n"
	if runID != "" {
		text += fmt.Sprintf("Run: `%s`\n", runID)
	}
	if retryAfter > 0 {
		text += fmt.Sprintf("Local budget frees up in %s.\n", retryAfter.Round(time.Second))
	} else {
		text += "The API rejected the request for quota.\n"
	}
	return text
}
