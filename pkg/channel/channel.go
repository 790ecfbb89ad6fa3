package channel

import (
	"context"
	"errors"

	"smsrouter/pkg/bus"
)

// ErrNotRunning is returned by Send when the adapter has no live connection.
var ErrNotRunning = errors.New("channel is not running")

// Handler routes one inbound channel message. It reports whether any handler
// accepted the message; replies are delivered separately through Adapter.Send.
type Handler func(context.Context, bus.InboundMessage) (bool, error)

// Adapter bridges one external transport (for example Telegram) into the router.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
	Send(context.Context, bus.OutboundMessage) error
}
