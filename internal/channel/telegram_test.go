package channel

import (
	"log/slog"
	"os"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"merchantbot/internal/domain"
)

type captureBus struct {
	events []domain.InboundEvent
}

func (c *captureBus) Publish(ev domain.InboundEvent)                     { c.events = append(c.events, ev) }
func (c *captureBus) Subscribe() <-chan domain.InboundEvent              { return nil }
func (c *captureBus) SendOutbound(domain.OutboundMessage) error          { return nil }
func (c *captureBus) OnOutbound(string, func(domain.OutboundMessage) error) {}
func (c *captureBus) Close()                                             {}

func newTestTelegram(bus domain.MessageBus) *Telegram {
	t := NewTelegram(TelegramConfig{
		Token:  "test",
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	t.bus = bus
	return t
}

func TestPublishUpdate_Command(t *testing.T) {
	bus := &captureBus{}
	tg := newTestTelegram(bus)

	tg.publishUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 100},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      "/start",
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}})

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.events))
	}
	ev := bus.events[0]
	if ev.Kind != domain.KindCommand || ev.Text != "start" {
		t.Errorf("expected start command, got kind=%s text=%q", ev.Kind, ev.Text)
	}
	if ev.ChatID != "100" || ev.SenderID != "100" {
		t.Errorf("unexpected identities: chat=%s sender=%s", ev.ChatID, ev.SenderID)
	}
}

func TestPublishUpdate_Text(t *testing.T) {
	bus := &captureBus{}
	tg := newTestTelegram(bus)

	tg.publishUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 6,
		From:      &tgbotapi.User{ID: 100},
		Chat:      &tgbotapi.Chat{ID: 200},
		Text:      "TKTgEtjonYPdCWDs7bUb9dUUwYikceDabx",
	}})

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.events))
	}
	ev := bus.events[0]
	if ev.Kind != domain.KindText {
		t.Errorf("expected text kind, got %s", ev.Kind)
	}
	if ev.MessageID != 6 {
		t.Errorf("expected message id 6, got %d", ev.MessageID)
	}
}

func TestPublishUpdate_Callback(t *testing.T) {
	bus := &captureBus{}
	tg := newTestTelegram(bus)

	tg.publishUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-9",
		From: &tgbotapi.User{ID: 100},
		Data: "withdraw",
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: 100},
		},
	}})

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.events))
	}
	ev := bus.events[0]
	if ev.Kind != domain.KindCallback || ev.CallbackData != "withdraw" || ev.CallbackID != "cb-9" {
		t.Errorf("unexpected callback event: %+v", ev)
	}
	if ev.MessageID != 7 {
		t.Errorf("expected message id 7, got %d", ev.MessageID)
	}
}

func TestPublishUpdate_EmptyTextIgnored(t *testing.T) {
	bus := &captureBus{}
	tg := newTestTelegram(bus)

	tg.publishUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 100},
		Chat: &tgbotapi.Chat{ID: 100},
	}})

	if len(bus.events) != 0 {
		t.Errorf("expected no events for empty text, got %d", len(bus.events))
	}
}

func TestToInlineKeyboard(t *testing.T) {
	kb := domain.Keyboard{
		{{Label: "Check balance", Data: "balance"}},
		{{Label: "Cancel", Data: "cancel"}, {Label: "Hide", Data: "delete_message"}},
	}
	markup := toInlineKeyboard(kb)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[1]) != 2 {
		t.Errorf("expected 2 buttons in second row, got %d", len(markup.InlineKeyboard[1]))
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.Text != "Check balance" || btn.CallbackData == nil || *btn.CallbackData != "balance" {
		t.Errorf("unexpected button: %+v", btn)
	}
}
