// Package ping answers PING with PONG so operators can check a number is live.
package ping

import (
	"context"

	"smsrouter/pkg/handler"
)

func New() (*handler.PatternHandler, error) {
	return handler.NewPatternHandler(handler.PatternConfig{
		Name:    "ping",
		Pattern: `^\s*ping\s*$`,
		Handle: func(_ context.Context, msg *handler.Message, _ []handler.Group) error {
			msg.Respond("pong")
			return nil
		},
	})
}
