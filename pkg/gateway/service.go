package gateway

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
	"github.com/go-chi/cors"

	"smsrouter/pkg/apps/registration"
	"smsrouter/pkg/bus"
	"smsrouter/pkg/channel"
	"smsrouter/pkg/config"
	"smsrouter/pkg/router"
	"smsrouter/pkg/store"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790
	eventBufferSize   = 32
)

// Service runs channel adapters, routes their inbound messages, and delivers
// the replies through the message bus.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	router   *router.Router
	store    *store.Store
	bus      *bus.MessageBus
	channels []channel.Adapter

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Handlers      []string                `json:"handlers"`
	StoreError    string                  `json:"store_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
	DroppedEvents uint64                  `json:"dropped_events"`
}

// NewService wires the router and adapters together. st may be nil when no
// enabled app needs persistence.
func NewService(cfg *config.Config, rt *router.Router, st *store.Store, mb *bus.MessageBus, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if rt == nil {
		return nil, errors.New("router is required")
	}
	if rt.Len() == 0 {
		return nil, errors.New("at least one handler is required")
	}
	if mb == nil {
		return nil, errors.New("message bus is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		router:        rt,
		store:         st,
		bus:           mb,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run blocks until ctx is cancelled or a channel or the status server fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	events, unsubscribe := s.bus.SubscribeEvents(ctx, eventBufferSize)
	defer unsubscribe()
	go s.observeEvents(ctx, events)

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	for _, adapter := range s.channels {
		s.bus.RegisterSender(adapter.Name(), adapter.Send)
	}
	go s.deliverOutbound(ctx)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	s.log.Info("Gateway started", "handlers", s.router.Names(), "channels", len(s.channels))

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// handleInbound runs one dispatch pass and queues every reply it produced,
// including replies queued by a handler that then failed.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bool, error) {
	s.bus.PublishEvent(ctx, eventFor(bus.EventMessageReceived, inbound))

	result, err := s.router.Handle(ctx, inbound)

	for _, reply := range result.Replies {
		if reply.IsError() {
			s.log.Warn("Handler replied with error", "handler", result.Handler, "session", reply.SessionKey, "reply", reply.Error)
		}
		if !s.bus.PublishOutbound(ctx, reply) {
			s.log.Warn("Dropped reply", "handler", result.Handler, "session", reply.SessionKey)
		}
	}

	switch {
	case err != nil:
		event := eventFor(bus.EventHandlerFailed, inbound)
		event.Handler = result.Handler
		event.Error = err.Error()
		s.bus.PublishEvent(ctx, event)
		return result.Handled, err
	case result.Handled:
		event := eventFor(bus.EventMessageHandled, inbound)
		event.Handler = result.Handler
		event.Payload = map[string]string{"replies": strconv.Itoa(len(result.Replies))}
		s.bus.PublishEvent(ctx, event)
	default:
		s.bus.PublishEvent(ctx, eventFor(bus.EventMessageUnhandled, inbound))
	}

	return result.Handled, nil
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	server := &http.Server{
		Addr:              s.statusAddr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) statusAddr() string {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// routes mounts the probes and, when a store is configured, the
// registration views.
func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if origins := s.cfg.Gateway.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if s.store != nil {
		registration.NewViews(s.store, s.log).RegisterRoutes(r)
	}

	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok", s.storeError(r.Context()))
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	storeErr := s.storeError(r.Context())

	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady(storeErr) {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status, storeErr)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string, storeErr string) {
	payload := s.currentStatus(status)
	payload.StoreError = storeErr

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Handlers:      s.router.Names(),
		Channels:      channels,
		DroppedEvents: s.bus.DroppedEvents(),
	}
}

// storeError pings the store and returns the failure text, or "" when the
// store is healthy or not configured.
func (s *Service) storeError(ctx context.Context) string {
	if s.store == nil {
		return ""
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return errorString(s.store.Ping(pingCtx))
}

// isReady requires at least one running channel and a healthy store.
func (s *Service) isReady(storeErr string) bool {
	if storeErr != "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
