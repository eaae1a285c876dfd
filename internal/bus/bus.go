// Package bus carries events between the chat channel, the dispatch loop
// and the webhook ingress inside one process.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"merchantbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based message bus for in-process communication.
type InMemoryBus struct {
	inbound  chan domain.InboundEvent
	handlers map[string]func(domain.OutboundMessage) error
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.InboundEvent, bufferSize),
		handlers: make(map[string]func(domain.OutboundMessage) error),
		logger:   logger,
	}
}

// Publish queues an inbound chat event. Blocks up to 10 seconds if the bus
// is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.InboundEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- ev:
	default:
		b.logger.Warn("inbound bus full, waiting...", "channel", ev.Channel, "sender", ev.SenderID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- ev:
			b.logger.Info("event delivered after wait", "channel", ev.Channel)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"channel", ev.Channel,
				"sender", ev.SenderID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundEvent {
	return b.inbound
}

// SendOutbound delivers one notification through the registered channel
// handler. Errors report only this message; the caller owns logging policy.
func (b *InMemoryBus) SendOutbound(msg domain.OutboundMessage) error {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no handler registered for channel %q", msg.Channel)
	}
	return handler(msg)
}

func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.OutboundMessage) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
