package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// MessageBus is the in-process queue between dispatch passes and transports.
//
// Handlers never talk to transports directly: their replies are published to
// the outbound queue and a delivery loop hands each one to the sender
// registered for its channel.
type MessageBus struct {
	outbound chan OutboundMessage
	senders  map[string]Sender

	eventSubscribers      map[uint64]eventSubscriber
	nextEventSubscriberID uint64
	droppedEvents         atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return NewMessageBusWithBuffer(defaultBufferSize)
}

func NewMessageBusWithBuffer(size int) *MessageBus {
	if size <= 0 {
		size = defaultBufferSize
	}

	return &MessageBus{
		outbound:         make(chan OutboundMessage, size),
		senders:          make(map[string]Sender),
		eventSubscribers: make(map[uint64]eventSubscriber),
		done:             make(chan struct{}),
	}
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.outbound <- msg:
		return true
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case <-mb.done:
		return OutboundMessage{}, false
	case msg := <-mb.outbound:
		return msg, true
	}
}

// RegisterSender binds a transport sender to a channel name.
func (mb *MessageBus) RegisterSender(channel string, sender Sender) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.senders[channel] = sender
}

func (mb *MessageBus) GetSender(channel string) (Sender, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	sender, ok := mb.senders[channel]
	return sender, ok
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, sub := range mb.eventSubscribers {
			close(sub.ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}
