// Package worker delivers lifecycle notifications by draining the
// outbox. Delivery is at-least-once; the checkpoint only advances after
// a batch is processed.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fairq/queue-service/internal/store"
)

const consumerName = "notify"

// EventSource is the slice of the store the worker needs.
type EventSource interface {
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error)
	ConsumerOffset(ctx context.Context, consumer string) (time.Time, error)
	SetConsumerOffset(ctx context.Context, consumer string, last time.Time, lastEventID string) error
}

type Worker struct {
	source    EventSource
	email     Provider
	push      Provider
	batchSize int
}

type Config struct {
	BatchSize     int
	EmailProvider string
	PushProvider  string
}

func New(source EventSource, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		source:    source,
		email:     newProvider(cfg.EmailProvider, "email"),
		push:      newProvider(cfg.PushProvider, "push"),
		batchSize: batch,
	}
}

// eventPayload mirrors the envelope the store writes to the outbox.
type eventPayload struct {
	Ticket struct {
		TicketNumber         string `json:"ticket_number"`
		QueuePosition        int    `json:"queue_position"`
		EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
		ArrivalWindow        *struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"arrival_window"`
	} `json:"ticket"`
	Contact struct {
		Email        string `json:"email"`
		DeviceToken  string `json:"device_token"`
		EmailEnabled bool   `json:"email_enabled"`
		PushEnabled  bool   `json:"push_enabled"`
	} `json:"contact"`
}

func (w *Worker) Run(ctx context.Context) error {
	last, err := w.source.ConsumerOffset(ctx, consumerName)
	if err != nil {
		return err
	}

	events, err := w.source.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}

	lastEventID := ""
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			log.Printf("notify process error event=%s type=%s: %v", event.EventID, event.Type, err)
		}
		last = event.CreatedAt
		lastEventID = event.EventID
	}

	if lastEventID != "" {
		return w.source.SetConsumerOffset(ctx, consumerName, last, lastEventID)
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, event store.OutboxEvent) error {
	var payload eventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	message := messageForEvent(event.Type, payload)
	if message == "" {
		return nil
	}

	if payload.Contact.EmailEnabled && payload.Contact.Email != "" {
		if err := w.email.Send(ctx, message, payload.Contact.Email); err != nil {
			return fmt.Errorf("email: %w", err)
		}
	}
	if payload.Contact.PushEnabled && payload.Contact.DeviceToken != "" {
		if err := w.push.Send(ctx, message, payload.Contact.DeviceToken); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}
	return nil
}

func messageForEvent(eventType string, payload eventPayload) string {
	ticket := payload.Ticket
	switch eventType {
	case store.EventTicketBooked:
		return fmt.Sprintf("Ticket %s booked. You are number %d in the queue, estimated wait %d minutes.",
			ticket.TicketNumber, ticket.QueuePosition, ticket.EstimatedWaitMinutes)
	case store.EventProcessingStarted:
		return fmt.Sprintf("Ticket %s is now being served.", ticket.TicketNumber)
	case store.EventTicketCompleted:
		return fmt.Sprintf("Ticket %s is complete. Thank you for your visit.", ticket.TicketNumber)
	case store.EventArrivalWindowAssigned:
		if ticket.ArrivalWindow == nil {
			return ""
		}
		return fmt.Sprintf("Ticket %s: please arrive between %s and %s.",
			ticket.TicketNumber,
			ticket.ArrivalWindow.Start.Format("15:04"),
			ticket.ArrivalWindow.End.Format("15:04"))
	default:
		return ""
	}
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
		}
	}
}
