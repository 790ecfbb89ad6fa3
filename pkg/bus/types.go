package bus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InboundMessage is one text message received from a transport.
type InboundMessage struct {
	ID         string            `json:"id"`
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is one reply queued for a transport.
//
// Content carries a normal reply and Error carries an error reply; exactly one
// of them is set for replies produced by handlers.
type OutboundMessage struct {
	ID         string            `json:"id"`
	InReplyTo  string            `json:"in_reply_to,omitempty"`
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	SessionKey string            `json:"session_key,omitempty"`
	Content    string            `json:"content"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewInbound builds an inbound message with a fresh ID and receive time.
func NewInbound(channel string, senderID string, chatID string, content string) InboundMessage {
	return InboundMessage{
		ID:         uuid.NewString(),
		Channel:    channel,
		SenderID:   senderID,
		ChatID:     chatID,
		Content:    content,
		SessionKey: channel + ":" + strings.TrimSpace(chatID),
		ReceivedAt: time.Now().UTC(),
	}
}

// Reply builds an outbound message addressed back to the sender of in.
func (in InboundMessage) Reply(text string) OutboundMessage {
	return OutboundMessage{
		ID:         uuid.NewString(),
		InReplyTo:  in.ID,
		Channel:    in.Channel,
		ChatID:     in.ChatID,
		SessionKey: in.SessionKey,
		Content:    text,
	}
}

// Text returns the reply body regardless of whether it is an error reply.
func (out OutboundMessage) Text() string {
	if out.Error != "" {
		return out.Error
	}

	return out.Content
}

// IsError reports whether the reply was produced by RespondError.
func (out OutboundMessage) IsError() bool {
	return out.Error != ""
}

// Sender delivers one outbound message over a specific transport.
type Sender func(context.Context, OutboundMessage) error
