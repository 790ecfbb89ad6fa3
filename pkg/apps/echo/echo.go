// Package echo replies with whatever text follows the ECHO keyword.
package echo

import (
	"context"

	"smsrouter/pkg/handler"
)

const helpText = "To echo some text, send: ECHO <ANYTHING>"

func New() (*handler.KeywordHandler, error) {
	return handler.NewKeywordHandler(handler.KeywordConfig{
		Name:    "echo",
		Keyword: "echo",
		Help: func(_ context.Context, msg *handler.Message) error {
			msg.Respond(helpText)
			return nil
		},
		Handle: func(_ context.Context, msg *handler.Message, text string) error {
			msg.Respond(text)
			return nil
		},
	})
}
