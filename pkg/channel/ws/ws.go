// Package ws lets browser clients text the router over a websocket. Each
// connection speaks for one identity given in the query string.
package ws

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
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/channel"
	"smsrouter/pkg/config"
)

const (
	channelName       = "ws"
	defaultHost       = "0.0.0.0"
	defaultPort       = 8081
	defaultSendBuffer = 16

	maxFrameBytes = 1 << 16
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
)

const (
	frameAck   = "ack"
	frameReply = "reply"
	frameError = "error"
)

var (
	// ErrNotConnected is returned by Send when the recipient has no open connection.
	ErrNotConnected = errors.New("recipient is not connected")
	// ErrSendBufferFull is returned by Send when the recipient is not reading.
	ErrSendBufferFull = errors.New("send buffer is full")
)

type inboundFrame struct {
	Text string `json:"text"`
}

// Frame is one server-to-client message.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Text      string `json:"text,omitempty"`
	Handled   bool   `json:"handled,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Adapter accepts websocket connections and routes every text frame.
type Adapter struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	identity  string
	conn      *websocket.Conn
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewAdapter constructs a websocket adapter.
func NewAdapter(cfg config.WebSocketConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}

	a := &Adapter{
		cfg:     cfg,
		log:     log.With("component", "channel.ws"),
		clients: make(map[string]*client),
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(cfg.AllowedOrigins) > 0 {
		a.upgrader.CheckOrigin = a.originAllowed
	}

	return a
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

// Run serves websocket connections until ctx is cancelled.
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

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		// Shutdown does not touch hijacked connections.
		a.closeAll()
	}()

	a.log.Info("Websocket channel started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve websocket: %w", err)
	}

	return nil
}

// Routes builds the websocket router.
func (a *Adapter) Routes(handler channel.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", a.serve(handler))

	return r
}

// Send queues one reply on the recipient's connection.
func (a *Adapter) Send(_ context.Context, msg bus.OutboundMessage) error {
	identity := strings.TrimSpace(msg.ChatID)

	a.mu.RLock()
	c, ok := a.clients[identity]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send to %s: %w", identity, ErrNotConnected)
	}

	frame := Frame{
		Type:      frameReply,
		ID:        msg.ID,
		InReplyTo: msg.InReplyTo,
		Text:      msg.Content,
		Error:     msg.Error,
	}
	if err := c.enqueue(frame); err != nil {
		return fmt.Errorf("send to %s: %w", identity, err)
	}

	return nil
}

// Connected returns the identities with an open connection.
func (a *Adapter) Connected() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return lo.Keys(a.clients)
}

func (a *Adapter) serve(handler channel.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.URL.Query().Get("identity"))
		if identity == "" {
			http.Error(w, "identity is required", http.StatusBadRequest)
			return
		}

		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.log.Debug("Websocket upgrade failed", "identity", identity, "error", err)
			return
		}

		c := &client{
			identity: identity,
			conn:     conn,
			send:     make(chan Frame, a.cfg.SendBuffer),
			done:     make(chan struct{}),
		}
		a.attach(c)
		defer a.detach(c)

		go c.writePump(a.log)
		a.readPump(r.Context(), c, handler)
	}
}

// readPump routes every text frame until the client disconnects. Each frame
// is acknowledged once routing finishes; replies arrive separately.
func (a *Adapter) readPump(ctx context.Context, c *client, handler channel.Handler) {
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.log.Warn("Websocket read error", "identity", c.identity, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Text) == "" {
			_ = c.enqueue(Frame{Type: frameError, Error: "expected {\"text\": \"...\"}"})
			continue
		}

		inbound := bus.NewInbound(channelName, c.identity, c.identity, frame.Text)
		handled, err := handler(ctx, inbound)
		ack := Frame{Type: frameAck, ID: inbound.ID, Handled: handled}
		if err != nil {
			a.log.Error("Failed to process inbound message", "session", inbound.SessionKey, "error", err)
			ack.Error = err.Error()
		}
		if err := c.enqueue(ack); err != nil {
			a.log.Warn("Dropped acknowledgement", "identity", c.identity, "error", err)
		}
	}
}

// attach registers c, replacing and closing any older connection for the
// same identity.
func (a *Adapter) attach(c *client) {
	a.mu.Lock()
	previous := a.clients[c.identity]
	a.clients[c.identity] = c
	a.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	a.log.Info("Websocket client connected", "identity", c.identity)
}

func (a *Adapter) detach(c *client) {
	a.mu.Lock()
	if a.clients[c.identity] == c {
		delete(a.clients, c.identity)
	}
	a.mu.Unlock()

	c.close()
	a.log.Info("Websocket client disconnected", "identity", c.identity)
}

func (a *Adapter) closeAll() {
	a.mu.Lock()
	clients := lo.Values(a.clients)
	a.clients = make(map[string]*client)
	a.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (a *Adapter) originAllowed(r *http.Request) bool {
	return lo.Contains(a.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (c *client) enqueue(frame Frame) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

func (c *client) writePump(log *slog.Logger) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				log.Warn("Websocket write error", "identity", c.identity, "error", err)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn("Websocket ping error", "identity", c.identity, "error", err)
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
