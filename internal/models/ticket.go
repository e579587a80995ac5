package models

import "time"

// Ticket is the persisted queue ticket. QueuePosition and
// EstimatedWaitMinutes are fixed at booking time; ArrivalWindow is
// recomputed while the ticket is still pending and frozen once
// processing begins.
type Ticket struct {
	TicketID             string         `json:"ticket_id"`
	TicketNumber         string         `json:"ticket_number"`
	CustomerID           string         `json:"customer_id"`
	Organization         string         `json:"organization"`
	LocationName         string         `json:"location_name,omitempty"`
	ServiceType          string         `json:"service_type"`
	Purpose              string         `json:"purpose"`
	Priority             Priority       `json:"priority"`
	Status               string         `json:"status"`
	QueuePosition        int            `json:"queue_position"`
	EstimatedWaitMinutes int            `json:"estimated_wait_minutes"`
	ArrivalWindow        *ArrivalWindow `json:"arrival_window,omitempty"`
	Notes                string         `json:"notes,omitempty"`
	BookedAt             time.Time      `json:"booked_at"`
	ProcessedAt          *time.Time     `json:"processed_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	ProcessedBy          *string        `json:"processed_by,omitempty"`
	PIT                  PITRecord      `json:"pit"`
	RequiredDocuments    []string       `json:"required_documents,omitempty"`
	Documents            []Document     `json:"documents,omitempty"`
}

// Priority flags are independent and may co-occur; the queue package
// collapses them into a single rank.
type Priority struct {
	Emergency bool `json:"emergency"`
	Elderly   bool `json:"elderly"`
	Prepared  bool `json:"prepared"`
}

type ArrivalWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PITRecord tracks the ticket-level view of an issued pre-identification
// token. ExpiresAt must match the expiry embedded in the credential.
type PITRecord struct {
	Generated   bool       `json:"generated"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type Document struct {
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusCompleted  = "Completed"
	// StatusCancelled is reserved; no transition currently produces it.
	StatusCancelled = "Cancelled"
)

// Contact carries the owning customer's notification capabilities, embedded
// in lifecycle events so the notification layer can deliver without another
// lookup.
type Contact struct {
	CustomerID   string `json:"customer_id"`
	Email        string `json:"email,omitempty"`
	DeviceToken  string `json:"device_token,omitempty"`
	EmailEnabled bool   `json:"email_enabled"`
	PushEnabled  bool   `json:"push_enabled"`
}
