package domain

// MessageBus routes events between the chat channel, the dispatch loop and
// the webhook ingress.
type MessageBus interface {
	Publish(ev InboundEvent)
	Subscribe() <-chan InboundEvent
	// SendOutbound delivers a notification through the handler registered
	// for the target channel. The error reports delivery failure for this
	// one message only; callers decide whether to log or escalate.
	SendOutbound(msg OutboundMessage) error
	OnOutbound(channelName string, handler func(OutboundMessage) error)
	Close()
}
