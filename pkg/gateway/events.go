package gateway

import (
	"context"
	"log/slog"
	"time"

	"smsrouter/pkg/bus"
)

func eventFor(eventType bus.EventType, inbound bus.InboundMessage) bus.Event {
	return bus.Event{
		Type:       eventType,
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		MessageID:  inbound.ID,
	}
}

// observeEvents logs bus events until ctx ends or the subscription closes.
func (s *Service) observeEvents(ctx context.Context, events <-chan bus.Event) {
	log := s.log.With("component", "bus.events")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, event)
		}
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"event_type", event.Type,
		"message_id", event.MessageID,
		"channel", event.Channel,
		"chat_id", event.ChatID,
		"session", event.SessionKey,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if event.Handler != "" {
		attrs = append(attrs, "handler", event.Handler)
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch {
	case event.Type.IsFailure():
		log.Error("Message event", append(attrs, "error", event.Error)...)
	case event.Type == bus.EventMessageHandled:
		log.Info("Message event", attrs...)
	default:
		log.Debug("Message event", attrs...)
	}
}
