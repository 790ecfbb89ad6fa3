package gateway

import (
	"context"
	"fmt"

	"smsrouter/pkg/bus"
)

// deliverOutbound drains the bus outbound queue and hands each reply to the
// sender registered for its channel. It is the only consumer of the queue, so
// replies to one chat leave in the order they were produced.
func (s *Service) deliverOutbound(ctx context.Context) {
	for {
		msg, ok := s.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		if err := s.deliver(ctx, msg); err != nil {
			s.log.Error("Failed to deliver reply", "channel", msg.Channel, "session", msg.SessionKey, "error", err)
			s.bus.PublishEvent(ctx, bus.Event{
				Type:       bus.EventDeliveryFailed,
				Channel:    msg.Channel,
				ChatID:     msg.ChatID,
				SessionKey: msg.SessionKey,
				MessageID:  msg.InReplyTo,
				Error:      err.Error(),
			})
		}
	}
}

func (s *Service) deliver(ctx context.Context, msg bus.OutboundMessage) error {
	send, ok := s.bus.GetSender(msg.Channel)
	if !ok {
		return fmt.Errorf("no sender registered for channel %q", msg.Channel)
	}

	return send(ctx, msg)
}
