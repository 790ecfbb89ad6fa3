package handler

import (
	"context"

	"smsrouter/pkg/bus"
)

const (
	testChannel = "test"
	testSender  = "test-sender"
)

// Test runs h against a synthetic message with the given text, without any
// transport.
//
// It returns handled == false and a nil slice when h did not accept the
// message. Otherwise it returns the reply texts in emission order; the slice
// is non-nil even when h accepted the message without replying.
func Test(h Handler, text string) ([]string, bool, error) {
	msg := NewMessage(bus.NewInbound(testChannel, testSender, testSender, text))

	handled, err := h.Dispatch(context.Background(), msg)
	if !handled {
		return nil, false, err
	}

	replies := msg.Responses()
	texts := make([]string, 0, len(replies))
	for _, reply := range replies {
		texts = append(texts, reply.Text())
	}

	return texts, true, err
}
