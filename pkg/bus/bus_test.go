package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOutboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	in := OutboundMessage{Channel: "sms", Content: "world", ChatID: "+15550100"}
	if ok := mb.PublishOutbound(context.Background(), in); !ok {
		t.Fatal("expected outbound publish to succeed")
	}

	out, ok := mb.SubscribeOutbound(context.Background())
	if !ok {
		t.Fatal("expected outbound subscribe to succeed")
	}
	if out.Content != in.Content {
		t.Fatalf("content = %q, want %q", out.Content, in.Content)
	}
}

func TestCloseStopsBusOperations(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if ok := mb.PublishOutbound(context.Background(), OutboundMessage{Content: "hello"}); ok {
		t.Fatal("expected outbound publish to fail after close")
	}
	if _, ok := mb.SubscribeOutbound(context.Background()); ok {
		t.Fatal("expected outbound subscribe to stop after close")
	}
}

func TestContextCancellation(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ok := mb.PublishOutbound(ctx, OutboundMessage{Content: "hello"}); ok {
		t.Fatal("expected publish to fail on canceled context")
	}

	if _, ok := mb.SubscribeOutbound(ctx); ok {
		t.Fatal("expected subscribe to fail on canceled context")
	}
}

func TestRegisterAndGetSender(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	wantErr := errors.New("boom")
	mb.RegisterSender("sms", func(context.Context, OutboundMessage) error { return wantErr })

	got, ok := mb.GetSender("sms")
	if !ok {
		t.Fatal("expected sender")
	}
	if err := got(context.Background(), OutboundMessage{}); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	if _, ok := mb.GetSender("telegram"); ok {
		t.Fatal("expected no sender for unregistered channel")
	}
}

func TestSubscribeUnblocksOnClose(t *testing.T) {
	mb := NewMessageBus()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = mb.SubscribeOutbound(context.Background())
	}()

	mb.Close()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscribe did not unblock after close")
	}
}

func TestInboundReplyAddressesSender(t *testing.T) {
	in := NewInbound("sms", "+15550100", "+15550100", "echo hi")
	if in.ID == "" {
		t.Fatal("expected inbound ID")
	}
	if in.SessionKey != "sms:+15550100" {
		t.Fatalf("session key = %q, want %q", in.SessionKey, "sms:+15550100")
	}

	out := in.Reply("hi")
	if out.InReplyTo != in.ID {
		t.Fatalf("in_reply_to = %q, want %q", out.InReplyTo, in.ID)
	}
	if out.ChatID != in.ChatID || out.Channel != in.Channel {
		t.Fatalf("reply addressed to %s/%s, want %s/%s", out.Channel, out.ChatID, in.Channel, in.ChatID)
	}
	if out.ID == "" || out.ID == in.ID {
		t.Fatalf("reply ID = %q, want fresh ID", out.ID)
	}
}

func TestOutboundText(t *testing.T) {
	if got := (OutboundMessage{Content: "ok"}).Text(); got != "ok" {
		t.Fatalf("Text = %q, want %q", got, "ok")
	}

	errReply := OutboundMessage{Error: "bad input"}
	if got := errReply.Text(); got != "bad input" {
		t.Fatalf("Text = %q, want %q", got, "bad input")
	}
	if !errReply.IsError() {
		t.Fatal("expected error reply")
	}
}

func TestEventFanout(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	eventsA, unsubA := mb.SubscribeEvents(ctx, 1)
	defer unsubA()
	eventsB, unsubB := mb.SubscribeEvents(ctx, 1)
	defer unsubB()

	event := Event{Type: EventMessageHandled, MessageID: "1"}
	if ok := mb.PublishEvent(ctx, event); !ok {
		t.Fatal("expected event publish to succeed")
	}

	for name, events := range map[string]<-chan Event{"A": eventsA, "B": eventsB} {
		select {
		case got := <-events:
			if got.Type != EventMessageHandled {
				t.Fatalf("subscriber %s event type = %q, want %q", name, got.Type, EventMessageHandled)
			}
			if got.At.IsZero() {
				t.Fatalf("subscriber %s event timestamp not set", name)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublishEvent(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	if ok := mb.PublishEvent(ctx, Event{Type: EventMessageReceived}); !ok {
		t.Fatal("expected first event publish to succeed")
	}

	start := time.Now()
	if ok := mb.PublishEvent(ctx, Event{Type: EventMessageHandled}); !ok {
		t.Fatal("expected second event publish to succeed")
	}

	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish event blocked on slow subscriber")
	}

	select {
	case <-events:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected at least one event")
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	unsubscribe()

	if ok := mb.PublishEvent(ctx, Event{Type: EventMessageReceived}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event channel close after unsubscribe")
	}
}

func TestSubscribeEventsUnblocksOnClose(t *testing.T) {
	mb := NewMessageBus()

	events, _ := mb.SubscribeEvents(context.Background(), 1)
	mb.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected event channel to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("event subscription did not unblock after close")
	}
}

func TestSubscribeEventsFiltersByType(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	failures, unsubscribe := mb.SubscribeEvents(ctx, 4, EventHandlerFailed, EventDeliveryFailed)
	defer unsubscribe()

	for _, eventType := range []EventType{EventMessageReceived, EventMessageHandled, EventDeliveryFailed} {
		if ok := mb.PublishEvent(ctx, Event{Type: eventType}); !ok {
			t.Fatalf("PublishEvent(%q) = false, want true", eventType)
		}
	}

	select {
	case got := <-failures:
		if got.Type != EventDeliveryFailed {
			t.Fatalf("event type = %q, want %q", got.Type, EventDeliveryFailed)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("filtered subscriber did not receive delivery failure")
	}

	select {
	case got := <-failures:
		t.Fatalf("unexpected extra event %q", got.Type)
	default:
	}
}

func TestDroppedEventsCountsFullSubscribers(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	_, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()
	_, unsubscribeOther := mb.SubscribeEvents(ctx, 1, EventHandlerFailed)
	defer unsubscribeOther()

	for range 3 {
		mb.PublishEvent(ctx, Event{Type: EventMessageReceived})
	}

	if got := mb.DroppedEvents(); got != 2 {
		t.Fatalf("DroppedEvents = %d, want %d", got, 2)
	}
}

func TestEventTypeIsFailure(t *testing.T) {
	tests := map[EventType]bool{
		EventMessageReceived:  false,
		EventMessageHandled:   false,
		EventMessageUnhandled: false,
		EventHandlerFailed:    true,
		EventDeliveryFailed:   true,
	}

	for eventType, want := range tests {
		if got := eventType.IsFailure(); got != want {
			t.Fatalf("%q.IsFailure() = %v, want %v", eventType, got, want)
		}
	}
}
