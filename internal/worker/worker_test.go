package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fairq/queue-service/internal/store"
)

type fakeSource struct {
	events       []store.OutboxEvent
	offset       time.Time
	checkpointed time.Time
	lastEventID  string
}

func (f *fakeSource) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	var out []store.OutboxEvent
	for _, event := range f.events {
		if event.CreatedAt.After(after) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeSource) ConsumerOffset(ctx context.Context, consumer string) (time.Time, error) {
	return f.offset, nil
}

func (f *fakeSource) SetConsumerOffset(ctx context.Context, consumer string, last time.Time, lastEventID string) error {
	f.checkpointed = last
	f.lastEventID = lastEventID
	return nil
}

type recordingProvider struct {
	sent []string
}

func (p *recordingProvider) Send(ctx context.Context, message, recipient string) error {
	p.sent = append(p.sent, recipient+": "+message)
	return nil
}

func event(t *testing.T, id, eventType string, createdAt time.Time, emailEnabled, pushEnabled bool) store.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"ticket": map[string]interface{}{
			"ticket_number":          "BAN-20260203-0001",
			"queue_position":         2,
			"estimated_wait_minutes": 30,
		},
		"contact": map[string]interface{}{
			"email":         "customer@example.com",
			"device_token":  "device-1",
			"email_enabled": emailEnabled,
			"push_enabled":  pushEnabled,
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return store.OutboxEvent{EventID: id, Type: eventType, Payload: payload, CreatedAt: createdAt}
}

func TestRunDeliversAndCheckpoints(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	source := &fakeSource{events: []store.OutboxEvent{
		event(t, "e-1", store.EventTicketBooked, base, true, true),
		event(t, "e-2", store.EventProcessingStarted, base.Add(time.Minute), true, true),
	}}
	email := &recordingProvider{}
	push := &recordingProvider{}
	w := &Worker{source: source, email: email, push: push, batchSize: 50}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(email.sent) != 2 || len(push.sent) != 2 {
		t.Fatalf("email=%d push=%d deliveries", len(email.sent), len(push.sent))
	}
	if !source.checkpointed.Equal(base.Add(time.Minute)) || source.lastEventID != "e-2" {
		t.Fatalf("checkpoint = %v / %s", source.checkpointed, source.lastEventID)
	}
}

func TestRunRespectsContactFlags(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	source := &fakeSource{events: []store.OutboxEvent{
		event(t, "e-1", store.EventTicketBooked, base, false, true),
	}}
	email := &recordingProvider{}
	push := &recordingProvider{}
	w := &Worker{source: source, email: email, push: push, batchSize: 50}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("email deliveries = %v", email.sent)
	}
	if len(push.sent) != 1 {
		t.Fatalf("push deliveries = %v", push.sent)
	}
}

func TestRunSkipsUnknownEventTypes(t *testing.T) {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	source := &fakeSource{events: []store.OutboxEvent{
		event(t, "e-1", "ticket.unknown", base, true, true),
	}}
	email := &recordingProvider{}
	push := &recordingProvider{}
	w := &Worker{source: source, email: email, push: push, batchSize: 50}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(email.sent) != 0 || len(push.sent) != 0 {
		t.Fatal("unknown event types must not notify")
	}
	if source.lastEventID != "e-1" {
		t.Fatal("offset must still advance past skipped events")
	}
}

func TestMessageForArrivalWindow(t *testing.T) {
	var payload eventPayload
	payload.Ticket.TicketNumber = "HOS-20260203-0042"
	payload.Ticket.ArrivalWindow = &struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}{
		Start: time.Date(2026, 2, 3, 9, 35, 0, 0, time.UTC),
		End:   time.Date(2026, 2, 3, 9, 50, 0, 0, time.UTC),
	}

	got := messageForEvent(store.EventArrivalWindowAssigned, payload)
	want := "Ticket HOS-20260203-0042: please arrive between 09:35 and 09:50."
	if got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}
