// Package channel adapts chat transports to the domain event model.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"merchantbot/internal/domain"
)

const pollTimeoutSeconds = 30

// Telegram is the Telegram transport: it feeds inbound updates into the bus
// and implements domain.Messenger for the router's responses.
type Telegram struct {
	token     string
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token     string
	ParseMode string
	Logger    *slog.Logger
}

// NewTelegram creates the Telegram channel.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	return &Telegram{
		token:     cfg.Token,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
// Outbound notifications for this channel are delivered through the bus.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound(t.Name(), func(msg domain.OutboundMessage) error {
		_, err := t.Send(ctx, msg.ChatID, msg.Content, msg.Keyboard)
		return err
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.publishUpdate(update)
		}
	}
}

// publishUpdate normalizes one Telegram update into an InboundEvent. Events
// are queued on the bus; the dispatch loop owns processing, so a slow API
// call never stalls polling.
func (t *Telegram) publishUpdate(update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
			return
		}
		t.bus.Publish(domain.InboundEvent{
			Channel:      t.Name(),
			ChatID:       strconv.FormatInt(cq.Message.Chat.ID, 10),
			SenderID:     strconv.FormatInt(cq.From.ID, 10),
			Kind:         domain.KindCallback,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
			MessageID:    cq.Message.MessageID,
			Timestamp:    time.Now(),
		})
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	ev := domain.InboundEvent{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		SenderID:  strconv.FormatInt(msg.From.ID, 10),
		MessageID: msg.MessageID,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	if msg.IsCommand() {
		ev.Kind = domain.KindCommand
		ev.Text = msg.Command()
	} else {
		if msg.Text == "" {
			return
		}
		ev.Kind = domain.KindText
		ev.Text = msg.Text
	}

	t.logger.Info("telegram update received",
		"kind", ev.Kind,
		"chat_id", ev.ChatID,
		"sender_id", ev.SenderID,
	)
	t.bus.Publish(ev)
}

// Send implements domain.Messenger.
func (t *Telegram) Send(ctx context.Context, chatID, text string, kb domain.Keyboard) (int, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = t.parseMode
	if kb != nil {
		msg.ReplyMarkup = toInlineKeyboard(kb)
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram send: %w", err)
	}
	return sent.MessageID, nil
}

// Edit implements domain.Messenger.
func (t *Telegram) Edit(ctx context.Context, chatID string, messageID int, text string, kb domain.Keyboard) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(id, messageID, text, toInlineKeyboard(kb))
	edit.ParseMode = t.parseMode
	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// Delete implements domain.Messenger.
func (t *Telegram) Delete(ctx context.Context, chatID string, messageID int) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(id, messageID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

// AnswerCallback implements domain.Messenger.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram callback answer: %w", err)
	}
	return nil
}

func toInlineKeyboard(kb domain.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
