// Package sum adds two numbers sent as "<a> plus <b>".
package sum

import (
	"context"
	"fmt"
	"math/big"

	"smsrouter/pkg/handler"
)

func New() (*handler.PatternHandler, error) {
	return handler.NewPatternHandler(handler.PatternConfig{
		Name:    "sum",
		Pattern: `^(\d+) plus (\d+)$`,
		Handle:  handle,
	})
}

func handle(_ context.Context, msg *handler.Message, groups []handler.Group) error {
	a, okA := new(big.Int).SetString(groups[0].Value, 10)
	b, okB := new(big.Int).SetString(groups[1].Value, 10)
	if !okA || !okB {
		msg.RespondError("Sorry, I can only add whole numbers.")
		return nil
	}

	msg.Respond(fmt.Sprintf("%s + %s = %s", a, b, new(big.Int).Add(a, b)))
	return nil
}
