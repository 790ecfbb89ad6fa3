package bus

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

// EventType names one stage in the life of a routed message.
type EventType string

const (
	EventMessageReceived  EventType = "message_received"
	EventMessageHandled   EventType = "message_handled"
	EventMessageUnhandled EventType = "message_unhandled"
	EventHandlerFailed    EventType = "handler_failed"
	EventDeliveryFailed   EventType = "delivery_failed"
)

// IsFailure reports whether the event records a handler or delivery fault.
func (t EventType) IsFailure() bool {
	return t == EventHandlerFailed || t == EventDeliveryFailed
}

// Event describes what happened to one inbound message or outbound reply.
type Event struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	Channel    string            `json:"channel,omitempty"`
	ChatID     string            `json:"chat_id,omitempty"`
	SessionKey string            `json:"session_key,omitempty"`
	MessageID  string            `json:"message_id,omitempty"`
	Handler    string            `json:"handler,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// eventSubscriber is one subscription. An empty types set receives every event.
type eventSubscriber struct {
	ch    chan Event
	types map[EventType]struct{}
}

func (s eventSubscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// PublishEvent fans event out to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the event and DroppedEvents grows.
func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	// Held across the sends so unsubscribe cannot close a channel mid-send.
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	subs := lo.Filter(lo.Values(mb.eventSubscribers), func(sub eventSubscriber, _ int) bool {
		return sub.wants(event.Type)
	})
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			mb.droppedEvents.Add(1)
		}
	}

	return true
}

// DroppedEvents counts deliveries skipped because a subscriber was full.
func (mb *MessageBus) DroppedEvents() uint64 {
	return mb.droppedEvents.Load()
}

// SubscribeEvents registers a subscription that lasts until ctx ends, the bus
// closes, or the returned func is called. When types are given only those
// event types are delivered.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int, types ...EventType) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	sub := eventSubscriber{
		ch: make(chan Event, buffer),
		types: lo.SliceToMap(types, func(t EventType) (EventType, struct{}) {
			return t, struct{}{}
		}),
	}

	mb.mu.Lock()
	select {
	case <-mb.done:
		mb.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	default:
	}

	id := mb.nextEventSubscriberID
	mb.nextEventSubscriberID++
	mb.eventSubscribers[id] = sub
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mb.mu.Lock()
			if existing, ok := mb.eventSubscribers[id]; ok {
				delete(mb.eventSubscribers, id)
				close(existing.ch)
			}
			mb.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-mb.done:
			unsubscribe()
		}
	}()

	return sub.ch, unsubscribe
}
