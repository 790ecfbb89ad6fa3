// Package httpsms exposes a webhook for SMS gateways that deliver inbound
// texts as HTTP requests and poll for replies.
package httpsms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/channel"
	"smsrouter/pkg/config"
)

const (
	channelName       = "sms"
	defaultHost       = "0.0.0.0"
	defaultPort       = 8080
	defaultOutboxSize = 100
	maxBodyBytes      = 64 << 10
)

// ErrOutboxFull is returned by Send when a recipient already has the maximum
// number of undelivered replies queued.
var ErrOutboxFull = errors.New("outbox is full")

type smsRequest struct {
	From string `json:"from" validate:"required"`
	Text string `json:"text" validate:"required"`
}

type acceptedResponse struct {
	ID      string `json:"id"`
	Handled bool   `json:"handled"`
	Error   string `json:"error,omitempty"`
}

type outboxMessage struct {
	ID        string `json:"id"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Text      string `json:"text"`
	Error     bool   `json:"error,omitempty"`
}

type outboxResponse struct {
	Identity string          `json:"identity"`
	Messages []outboxMessage `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Adapter receives texts on POST /sms and queues replies per recipient until
// the gateway drains them from GET /sms/outbox/{identity}.
type Adapter struct {
	cfg      config.HTTPConfig
	validate *validator.Validate
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	outbox  map[string][]bus.OutboundMessage
}

// NewAdapter constructs an HTTP SMS adapter.
func NewAdapter(cfg config.HTTPConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = defaultOutboxSize
	}

	return &Adapter{
		cfg:      cfg,
		validate: validator.New(),
		log:      log.With("component", "channel.httpsms"),
		outbox:   make(map[string][]bus.OutboundMessage),
	}
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Addr returns the configured listen address.
func (a *Adapter) Addr() string {
	host := strings.TrimSpace(a.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := a.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Run serves the webhook until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	server := &http.Server{
		Addr:              a.Addr(),
		Handler:           a.Routes(handler),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	a.setRunning(true)
	defer a.setRunning(false)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.log.Info("HTTP SMS channel started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve sms webhook: %w", err)
	}

	return nil
}

// Routes builds the webhook router. Run mounts it on its own server; tests
// drive it through httptest.
func (a *Adapter) Routes(handler channel.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/sms", a.receive(handler))
	r.Get("/sms/outbox/{identity}", a.drain)

	return r
}

// Send queues one reply for its recipient. The queue is bounded per
// recipient by channels.http.outbox_size.
func (a *Adapter) Send(_ context.Context, msg bus.OutboundMessage) error {
	identity := strings.TrimSpace(msg.ChatID)
	if identity == "" {
		return errors.New("recipient is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return channel.ErrNotRunning
	}

	queue := a.outbox[identity]
	if len(queue) >= a.cfg.OutboxSize {
		return fmt.Errorf("queue reply for %s: %w", identity, ErrOutboxFull)
	}
	a.outbox[identity] = append(queue, msg)

	return nil
}

func (a *Adapter) setRunning(running bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = running
}

func (a *Adapter) receive(handler channel.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := a.decodeRequest(w, r)
		if err != nil {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		inbound := bus.NewInbound(channelName, req.From, req.From, req.Text)
		if requestID := middleware.GetReqID(r.Context()); requestID != "" {
			inbound.Metadata = map[string]string{"request_id": requestID}
		}

		handled, err := handler(r.Context(), inbound)
		resp := acceptedResponse{ID: inbound.ID, Handled: handled}
		if err != nil {
			// Still 202: the message was consumed and must not be redelivered.
			a.log.Error("Failed to process inbound message", "session", inbound.SessionKey, "error", err)
			resp.Error = err.Error()
		}

		a.writeJSON(w, http.StatusAccepted, resp)
	}
}

func (a *Adapter) decodeRequest(w http.ResponseWriter, r *http.Request) (smsRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req smsRequest
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return smsRequest{}, fmt.Errorf("decode request: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return smsRequest{}, fmt.Errorf("parse form: %w", err)
		}
		req.From = r.PostForm.Get("from")
		req.Text = r.PostForm.Get("text")
	}

	req.From = strings.TrimSpace(req.From)
	if err := a.validate.Struct(req); err != nil {
		return smsRequest{}, fmt.Errorf("invalid request: %w", err)
	}

	return req, nil
}

func (a *Adapter) drain(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(chi.URLParam(r, "identity"))

	a.mu.Lock()
	queued := a.outbox[identity]
	delete(a.outbox, identity)
	a.mu.Unlock()

	messages := lo.Map(queued, func(msg bus.OutboundMessage, _ int) outboxMessage {
		return outboxMessage{
			ID:        msg.ID,
			InReplyTo: msg.InReplyTo,
			Text:      msg.Text(),
			Error:     msg.IsError(),
		}
	})

	a.writeJSON(w, http.StatusOK, outboxResponse{Identity: identity, Messages: messages})
}

func (a *Adapter) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.log.Error("Failed to write response", "error", err)
	}
}
