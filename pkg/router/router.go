// Package router runs dispatch passes over the handlers active in a
// deployment.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/handler"

	"github.com/samber/lo"
)

// ErrHandlerPanic marks a HandlerError caused by a panic inside Dispatch.
var ErrHandlerPanic = errors.New("handler panic")

// HandlerError attributes a runtime fault to the one handler that raised it.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Result summarizes one dispatch pass. Handler names the handler that
// accepted the message or faulted, and is empty otherwise.
type Result struct {
	Handled bool
	Handler string
	Replies []bus.OutboundMessage
}

// Router holds the registered handler set. It is read-only after New and may
// be shared by concurrent dispatch passes.
type Router struct {
	handlers []handler.Handler
	log      *slog.Logger
}

func New(handlers []handler.Handler, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		handlers: append([]handler.Handler(nil), handlers...),
		log:      log.With("component", "router"),
	}
}

// Names returns the registered handler names in try order.
func (r *Router) Names() []string {
	return lo.Map(r.handlers, func(h handler.Handler, _ int) string {
		return h.Name()
	})
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	return len(r.handlers)
}

// Process tries each handler in turn and stops at the first that accepts msg.
//
// It reports false with a nil error when no handler accepted the message. A
// handler that returns an error ends the pass: the error is wrapped in a
// *HandlerError, handled is whatever that handler reported, and no later
// handler is tried. A recovered panic counts as handled.
func (r *Router) Process(ctx context.Context, msg *handler.Message) (bool, error) {
	_, handled, err := r.process(ctx, msg)
	return handled, err
}

// Handle runs one dispatch pass for an inbound message and returns the
// replies it produced.
func (r *Router) Handle(ctx context.Context, in bus.InboundMessage) (Result, error) {
	msg := handler.NewMessage(in)
	name, handled, err := r.process(ctx, msg)

	return Result{
		Handled: handled,
		Handler: name,
		Replies: msg.Responses(),
	}, err
}

func (r *Router) process(ctx context.Context, msg *handler.Message) (string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, h := range r.handlers {
		handled, err := dispatch(ctx, h, msg)
		if err != nil {
			return h.Name(), handled, &HandlerError{Handler: h.Name(), Err: err}
		}
		if handled {
			r.log.Debug("Message handled", "handler", h.Name(), "message_id", msg.Inbound().ID)
			return h.Name(), true, nil
		}
	}

	r.log.Debug("Message not handled", "message_id", msg.Inbound().ID, "handlers", len(r.handlers))
	return "", false, nil
}

// dispatch calls h.Dispatch and converts a panic into an error.
func dispatch(ctx context.Context, h handler.Handler, msg *handler.Message) (handled bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			handled = true
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, recovered)
		}
	}()

	return h.Dispatch(ctx, msg)
}
