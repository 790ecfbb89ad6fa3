// Package handler defines the unit of message-handling behavior and its two
// matching strategies: keyword-prefix matching and full-pattern matching.
package handler

import (
	"context"

	"smsrouter/pkg/bus"
)

// Handler decides, per incoming message, whether to produce a reply.
//
// Dispatch reports true when the handler accepted the message, even if it
// queued no replies. A message the handler does not apply to is reported as
// false with a nil error.
type Handler interface {
	Name() string
	Dispatch(ctx context.Context, msg *Message) (bool, error)
}

// Message binds one inbound message to one dispatch pass and collects the
// replies produced during it.
//
// A Message is not safe for concurrent use; each pass allocates its own.
type Message struct {
	inbound bus.InboundMessage
	replies []bus.OutboundMessage
}

// NewMessage wraps an inbound message for a single dispatch pass.
func NewMessage(in bus.InboundMessage) *Message {
	return &Message{inbound: in}
}

// Inbound returns the message as received from the transport.
func (m *Message) Inbound() bus.InboundMessage {
	return m.inbound
}

// Text returns the raw message text.
func (m *Message) Text() string {
	return m.inbound.Content
}

// Respond queues one reply addressed back to the sender.
func (m *Message) Respond(text string) {
	m.replies = append(m.replies, m.inbound.Reply(text))
}

// RespondError queues one reply flagged as an error. Delivery is identical to
// Respond.
func (m *Message) RespondError(text string) {
	reply := m.inbound.Reply("")
	reply.Error = text
	m.replies = append(m.replies, reply)
}

// Responses returns the queued replies in emission order.
func (m *Message) Responses() []bus.OutboundMessage {
	out := make([]bus.OutboundMessage, len(m.replies))
	copy(out, m.replies)
	return out
}
