package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/handler"

	"github.com/stretchr/testify/require"
)

// countingHandler accepts messages whose text equals accept.
type countingHandler struct {
	name   string
	accept string
	calls  int
	err    error
	panics bool
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) Dispatch(_ context.Context, msg *handler.Message) (bool, error) {
	h.calls++
	if msg.Text() != h.accept {
		return false, nil
	}
	if h.panics {
		panic("kaboom")
	}
	msg.Respond("from " + h.name)
	return true, h.err
}

func newCounting(n int, acceptIndex int) []*countingHandler {
	handlers := make([]*countingHandler, n)
	for i := range handlers {
		handlers[i] = &countingHandler{name: fmt.Sprintf("h%d", i), accept: "never"}
	}
	if acceptIndex >= 0 {
		handlers[acceptIndex].accept = "hit"
	}
	return handlers
}

func asHandlers(in []*countingHandler) []handler.Handler {
	out := make([]handler.Handler, len(in))
	for i, h := range in {
		out[i] = h
	}
	return out
}

func rotate(in []*countingHandler, by int) []*countingHandler {
	out := make([]*countingHandler, 0, len(in))
	out = append(out, in[by:]...)
	return append(out, in[:by]...)
}

func inbound(text string) bus.InboundMessage {
	return bus.NewInbound("sms", "+15550100", "+15550100", text)
}

func TestProcessSingleAcceptorAnyOrder(t *testing.T) {
	const n = 5

	for acceptIndex := 0; acceptIndex < n; acceptIndex++ {
		for shift := 0; shift < n; shift++ {
			handlers := newCounting(n, acceptIndex)
			ordered := rotate(handlers, shift)

			r := New(asHandlers(ordered), nil)
			handled, err := r.Process(context.Background(), handler.NewMessage(inbound("hit")))
			require.NoError(t, err)
			require.True(t, handled)

			require.Equal(t, 1, handlers[acceptIndex].calls, "acceptor must be dispatched exactly once")

			acceptorPos := (acceptIndex - shift + n) % n
			for pos, h := range ordered {
				if pos > acceptorPos {
					require.Zerof(t, h.calls, "handler %s after the acceptor must not run", h.name)
				} else {
					require.Equalf(t, 1, h.calls, "handler %s before the acceptor runs once", h.name)
				}
			}
		}
	}
}

func TestProcessNoAcceptorTriesEveryHandlerOnce(t *testing.T) {
	handlers := newCounting(4, -1)
	r := New(asHandlers(handlers), nil)

	handled, err := r.Process(context.Background(), handler.NewMessage(inbound("hit")))
	require.NoError(t, err)
	require.False(t, handled)

	for _, h := range handlers {
		require.Equalf(t, 1, h.calls, "handler %s", h.name)
	}
}

func TestProcessFirstAcceptorWins(t *testing.T) {
	first := &countingHandler{name: "first", accept: "hit"}
	second := &countingHandler{name: "second", accept: "hit"}
	r := New([]handler.Handler{first, second}, nil)

	result, err := r.Handle(context.Background(), inbound("hit"))
	require.NoError(t, err)
	require.True(t, result.Handled)
	require.Equal(t, "first", result.Handler)
	require.Len(t, result.Replies, 1)
	require.Equal(t, "from first", result.Replies[0].Content)
	require.Zero(t, second.calls)
}

func TestProcessHandlerErrorIsAttributed(t *testing.T) {
	wantErr := errors.New("db down")
	handlers := newCounting(3, 1)
	handlers[1].err = wantErr
	r := New(asHandlers(handlers), nil)

	result, err := r.Handle(context.Background(), inbound("hit"))
	require.ErrorIs(t, err, wantErr)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, "h1", handlerErr.Handler)

	require.True(t, result.Handled)
	require.Len(t, result.Replies, 1, "replies queued before the fault are kept")
	require.Zero(t, handlers[2].calls)
}

// decliningHandler refuses every message but reports an error doing so.
type decliningHandler struct{ err error }

func (h decliningHandler) Name() string { return "declining" }

func (h decliningHandler) Dispatch(context.Context, *handler.Message) (bool, error) {
	return false, h.err
}

func TestProcessErrorKeepsHandlerVerdict(t *testing.T) {
	wantErr := errors.New("lookup failed")
	later := &countingHandler{name: "later", accept: "hit"}
	r := New([]handler.Handler{decliningHandler{err: wantErr}, later}, nil)

	result, err := r.Handle(context.Background(), inbound("hit"))
	require.ErrorIs(t, err, wantErr)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, "declining", handlerErr.Handler)

	require.False(t, result.Handled)
	require.Equal(t, "declining", result.Handler)
	require.Empty(t, result.Replies)
	require.Zero(t, later.calls)

	handled, err := r.Process(context.Background(), handler.NewMessage(inbound("hit")))
	require.False(t, handled)
	require.ErrorAs(t, err, &handlerErr)
}

func TestProcessRecoversPanics(t *testing.T) {
	handlers := newCounting(3, 0)
	handlers[0].panics = true
	r := New(asHandlers(handlers), nil)

	handled, err := r.Process(context.Background(), handler.NewMessage(inbound("hit")))
	require.True(t, handled)
	require.ErrorIs(t, err, ErrHandlerPanic)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, "h0", handlerErr.Handler)
	require.Zero(t, handlers[1].calls)
}

func TestHandleUnhandledHasNoReplies(t *testing.T) {
	r := New(nil, nil)

	result, err := r.Handle(context.Background(), inbound("anything"))
	require.NoError(t, err)
	require.False(t, result.Handled)
	require.Empty(t, result.Handler)
	require.Empty(t, result.Replies)
}

func TestRouterWithKeywordAndPatternHandlers(t *testing.T) {
	echo, err := handler.NewKeywordHandler(handler.KeywordConfig{
		Name:    "echo",
		Keyword: "echo",
		Help: func(_ context.Context, msg *handler.Message) error {
			msg.Respond("usage: echo <text>")
			return nil
		},
		Handle: func(_ context.Context, msg *handler.Message, text string) error {
			msg.Respond(text)
			return nil
		},
	})
	require.NoError(t, err)

	ping, err := handler.NewPatternHandler(handler.PatternConfig{
		Name:    "ping",
		Pattern: `^\s*ping\s*$`,
		Handle: func(_ context.Context, msg *handler.Message, _ []handler.Group) error {
			msg.Respond("pong")
			return nil
		},
	})
	require.NoError(t, err)

	r := New([]handler.Handler{echo, ping}, nil)
	require.Equal(t, []string{"echo", "ping"}, r.Names())
	require.Equal(t, 2, r.Len())

	tests := []struct {
		text    string
		handled bool
		handler string
		replies []string
	}{
		{text: "ECHO: Hi There", handled: true, handler: "echo", replies: []string{"Hi There"}},
		{text: "echo", handled: true, handler: "echo", replies: []string{"usage: echo <text>"}},
		{text: " PING ", handled: true, handler: "ping", replies: []string{"pong"}},
		{text: "pong", handled: false},
	}

	for _, tt := range tests {
		result, err := r.Handle(context.Background(), inbound(tt.text))
		require.NoError(t, err)
		require.Equalf(t, tt.handled, result.Handled, "text %q", tt.text)
		require.Equalf(t, tt.handler, result.Handler, "text %q", tt.text)

		texts := make([]string, 0, len(result.Replies))
		for _, reply := range result.Replies {
			texts = append(texts, reply.Text())
		}
		if tt.replies == nil {
			require.Emptyf(t, texts, "text %q", tt.text)
			continue
		}
		require.Equalf(t, tt.replies, texts, "text %q", tt.text)
	}
}
