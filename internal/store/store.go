package store

import (
	"context"
	"encoding/json"
	"time"

	"fairq/queue-service/internal/models"
)

// Actor is the identity triple supplied by the auth layer. The store
// trusts it; it only checks the triple against ticket ownership and scope.
type Actor struct {
	ID           string
	Role         string
	Organization string
	LocationName string
}

const (
	RoleCustomer = "Customer"
	RoleStaff    = "Staff"
	RoleAdmin    = "Admin"
)

type BookTicketInput struct {
	CustomerID   string
	Organization string
	LocationName string
	ServiceType  string
	Purpose      string
	Emergency    bool
	Elderly      bool
	BookedAt     time.Time
}

type UpdateStatusInput struct {
	TicketID     string
	TargetStatus string
	Notes        string
	Actor        Actor
	OccurredAt   time.Time
}

type MarkPITInput struct {
	TicketID    string
	CustomerID  string
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// PITValidationInput applies the side effects of a verified credential.
// Credential signature and structure are checked by the caller before the
// store is involved.
type PITValidationInput struct {
	TicketID   string
	Actor      Actor
	OccurredAt time.Time
}

type AttachDocumentsInput struct {
	TicketID   string
	CustomerID string
	Documents  []models.Document
}

type Stats struct {
	Total          int            `json:"total"`
	Today          int            `json:"today"`
	ByStatus       map[string]int `json:"by_status"`
	ByOrganization map[string]int `json:"by_organization"`
}

type TicketStore interface {
	BookTicket(ctx context.Context, input BookTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string, actor Actor) (models.Ticket, error)
	ListCustomerTickets(ctx context.Context, customerID, status string) ([]models.Ticket, error)
	ListActiveByServiceType(ctx context.Context, serviceType string) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, input UpdateStatusInput) (models.Ticket, error)
	MarkPITGenerated(ctx context.Context, input MarkPITInput) (models.Ticket, error)
	ApplyPITValidation(ctx context.Context, input PITValidationInput) (models.Ticket, error)
	ListPITEligible(ctx context.Context, customerID string) ([]models.Ticket, error)
	AttachDocuments(ctx context.Context, input AttachDocumentsInput) (models.Ticket, error)
	TicketStats(ctx context.Context) (Stats, error)
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
	ListTicketEvents(ctx context.Context, ticketID string) ([]TicketEvent, error)
}

// Lifecycle event types written to the outbox for the notification and
// realtime layers.
const (
	EventTicketBooked          = "ticket.booked"
	EventProcessingStarted     = "ticket.processing"
	EventTicketCompleted       = "ticket.completed"
	EventArrivalWindowAssigned = "arrival_window.assigned"
)

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
