// Package postgres implements the ticket store on PostgreSQL. Every
// operation runs in its own transaction; bookings are serialized per
// (organization, location) scope with an advisory lock so queue
// positions are assigned without gaps or duplicates.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fairq/queue-service/internal/models"
	"fairq/queue-service/internal/queue"
	"fairq/queue-service/internal/store"
)

const ticketNumberRetries = 5

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ticketColumns = `ticket_id, ticket_number, customer_id, organization, location_name,
	service_type, purpose, emergency, elderly, prepared, status,
	queue_position, estimated_wait_minutes, arrival_start, arrival_end,
	notes, booked_at, processed_at, completed_at, processed_by,
	pit_generated, pit_generated_at, pit_expires_at, required_documents, documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var (
		t            models.Ticket
		arrivalStart sql.NullTime
		arrivalEnd   sql.NullTime
		processedAt  sql.NullTime
		completedAt  sql.NullTime
		processedBy  sql.NullString
		pitGenAt     sql.NullTime
		pitExpiresAt sql.NullTime
		documents    []byte
	)
	err := row.Scan(
		&t.TicketID, &t.TicketNumber, &t.CustomerID, &t.Organization, &t.LocationName,
		&t.ServiceType, &t.Purpose, &t.Priority.Emergency, &t.Priority.Elderly, &t.Priority.Prepared, &t.Status,
		&t.QueuePosition, &t.EstimatedWaitMinutes, &arrivalStart, &arrivalEnd,
		&t.Notes, &t.BookedAt, &processedAt, &completedAt, &processedBy,
		&t.PIT.Generated, &pitGenAt, &pitExpiresAt, &t.RequiredDocuments, &documents,
	)
	if err != nil {
		return models.Ticket{}, err
	}
	if arrivalStart.Valid && arrivalEnd.Valid {
		t.ArrivalWindow = &models.ArrivalWindow{Start: arrivalStart.Time, End: arrivalEnd.Time}
	}
	t.ProcessedAt = nullTimePtr(processedAt)
	t.CompletedAt = nullTimePtr(completedAt)
	t.ProcessedBy = nullStringPtr(processedBy)
	t.PIT.GeneratedAt = nullTimePtr(pitGenAt)
	t.PIT.ExpiresAt = nullTimePtr(pitExpiresAt)
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &t.Documents); err != nil {
			return models.Ticket{}, fmt.Errorf("decode documents: %w", err)
		}
	}
	return t, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scopeKey(organization, locationName string) string {
	return organization + "|" + locationName
}

func loadContact(ctx context.Context, q querier, customerID string) (models.Contact, error) {
	var c models.Contact
	err := q.QueryRow(ctx, `SELECT customer_id, email, device_token, email_enabled, push_enabled
		FROM customers WHERE customer_id = $1`, customerID).
		Scan(&c.CustomerID, &c.Email, &c.DeviceToken, &c.EmailEnabled, &c.PushEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Contact{}, store.ErrCustomerNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

func getTicketForUpdate(ctx context.Context, tx pgx.Tx, ticketID string) (models.Ticket, error) {
	row := tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1 FOR UPDATE`, ticketID)
	ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, err
}

// eventPayload is the envelope written to the outbox. Scope fields are
// duplicated at the top level so the realtime layer can match
// subscriptions without unpacking the ticket.
type eventPayload struct {
	Organization string         `json:"organization"`
	LocationName string         `json:"location_name,omitempty"`
	ServiceType  string         `json:"service_type"`
	CustomerID   string         `json:"customer_id"`
	Ticket       models.Ticket  `json:"ticket"`
	Contact      models.Contact `json:"contact"`
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket, contact models.Contact, at time.Time) (json.RawMessage, error) {
	payload, err := json.Marshal(eventPayload{
		Organization: ticket.Organization,
		LocationName: ticket.LocationName,
		ServiceType:  ticket.ServiceType,
		CustomerID:   ticket.CustomerID,
		Ticket:       ticket,
		Contact:      contact,
	})
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)`, uuid.NewString(), eventType, payload, at.UTC())
	return payload, err
}

// appendTicketEvent extends the ticket's hash chain. The per-ticket
// advisory lock keeps sequence assignment and chaining race free when
// two transactions touch the same ticket.
func appendTicketEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload json.RawMessage, at time.Time) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "ticket_events|"+ticketID); err != nil {
		return err
	}
	var (
		seq      int
		prevHash sql.NullString
	)
	err := tx.QueryRow(ctx, `SELECT ticket_seq, hash FROM ticket_events
		WHERE ticket_id = $1 ORDER BY ticket_seq DESC LIMIT 1`, ticketID).Scan(&seq, &prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	seq++
	createdAt := at.UTC()
	hash := store.ComputeTicketEventHash(prevHash.String, ticketID, eventType, payload, createdAt, seq)
	_, err = tx.Exec(ctx, `INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, ticketID, seq, eventType, payload, createdAt, prevHash.String, hash)
	return err
}

func recordLifecycleEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket, contact models.Contact, at time.Time) error {
	payload, err := insertOutboxEvent(ctx, tx, eventType, ticket, contact, at)
	if err != nil {
		return err
	}
	return appendTicketEvent(ctx, tx, ticket.TicketID, eventType, payload, at)
}

func newTicketNumber(organization string, bookedAt time.Time) string {
	code := organization
	if len(code) > 3 {
		code = code[:3]
	}
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(code), bookedAt.Format("20060102"), rand.Intn(10000))
}

func (s *Store) BookTicket(ctx context.Context, input store.BookTicketInput) (models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Ticket{}, err
	}
	defer tx.Rollback(ctx)

	contact, err := loadContact(ctx, tx, input.CustomerID)
	if err != nil {
		return models.Ticket{}, err
	}

	// Serialize bookings per scope so concurrent requests cannot observe
	// the same active count and claim the same position.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		scopeKey(input.Organization, input.LocationName)); err != nil {
		return models.Ticket{}, err
	}

	var active int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM tickets
		WHERE organization = $1 AND location_name = $2 AND status IN ($3, $4)`,
		input.Organization, input.LocationName, models.StatusPending, models.StatusProcessing).Scan(&active)
	if err != nil {
		return models.Ticket{}, err
	}

	bookedAt := input.BookedAt.UTC()
	position := queue.AssignPosition(active)
	window := queue.ArrivalWindowAt(bookedAt, position.EstimatedWaitMinutes)

	ticket := models.Ticket{
		TicketID:     uuid.NewString(),
		CustomerID:   input.CustomerID,
		Organization: input.Organization,
		LocationName: input.LocationName,
		ServiceType:  input.ServiceType,
		Purpose:      input.Purpose,
		Priority: models.Priority{
			Emergency: input.Emergency,
			Elderly:   input.Elderly,
		},
		Status:               models.StatusPending,
		QueuePosition:        position.QueuePosition,
		EstimatedWaitMinutes: position.EstimatedWaitMinutes,
		ArrivalWindow:        &window,
		BookedAt:             bookedAt,
		RequiredDocuments:    models.RequiredDocuments(input.Organization),
	}

	// A raised unique violation would abort the whole transaction, so
	// collisions are absorbed with DO NOTHING and retried with a fresh
	// random suffix.
	inserted := false
	for attempt := 0; attempt < ticketNumberRetries; attempt++ {
		ticket.TicketNumber = newTicketNumber(input.Organization, bookedAt)
		tag, err := tx.Exec(ctx, `INSERT INTO tickets (
				ticket_id, ticket_number, customer_id, organization, location_name,
				service_type, purpose, emergency, elderly, status,
				queue_position, estimated_wait_minutes, arrival_start, arrival_end,
				booked_at, required_documents
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (ticket_number) DO NOTHING`,
			ticket.TicketID, ticket.TicketNumber, ticket.CustomerID, ticket.Organization, ticket.LocationName,
			ticket.ServiceType, ticket.Purpose, ticket.Priority.Emergency, ticket.Priority.Elderly, ticket.Status,
			ticket.QueuePosition, ticket.EstimatedWaitMinutes, window.Start, window.End,
			ticket.BookedAt, ticket.RequiredDocuments)
		if err != nil {
			return models.Ticket{}, err
		}
		if tag.RowsAffected() == 1 {
			inserted = true
			break
		}
	}
	if !inserted {
		return models.Ticket{}, fmt.Errorf("%w: ticket number space exhausted", store.ErrConflict)
	}

	if err := recordLifecycleEvent(ctx, tx, store.EventTicketBooked, ticket, contact, bookedAt); err != nil {
		return models.Ticket{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func authorizeTicketAccess(ticket models.Ticket, actor store.Actor) error {
	switch actor.Role {
	case store.RoleAdmin:
		return nil
	case store.RoleStaff:
		if actor.Organization != ticket.Organization {
			return store.ErrAccessDenied
		}
		if ticket.LocationName != "" && actor.LocationName != "" && actor.LocationName != ticket.LocationName {
			return store.ErrAccessDenied
		}
		return nil
	default:
		if actor.ID != ticket.CustomerID {
			return store.ErrAccessDenied
		}
		return nil
	}
}

func (s *Store) GetTicket(ctx context.Context, ticketID string, actor store.Actor) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if err != nil {
		return models.Ticket{}, err
	}
	if err := authorizeTicketAccess(ticket, actor); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) listTickets(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) ListCustomerTickets(ctx context.Context, customerID, status string) ([]models.Ticket, error) {
	if status != "" {
		return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
			WHERE customer_id = $1 AND status = $2 ORDER BY booked_at DESC`, customerID, status)
	}
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE customer_id = $1 ORDER BY booked_at DESC`, customerID)
}

func (s *Store) ListActiveByServiceType(ctx context.Context, serviceType string) ([]models.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE service_type = $1 AND status IN ($2, $3) ORDER BY booked_at ASC`,
		serviceType, models.StatusPending, models.StatusProcessing)
}

func (s *Store) ListPITEligible(ctx context.Context, customerID string) ([]models.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE customer_id = $1 AND status = $2 AND pit_generated = FALSE
		ORDER BY booked_at DESC`, customerID, models.StatusPending)
}

func (s *Store) UpdateTicketStatus(ctx context.Context, input store.UpdateStatusInput) (models.Ticket, error) {
	if !store.ValidTarget(input.TargetStatus) {
		return models.Ticket{}, fmt.Errorf("%w: unsupported target %q", store.ErrInvalidStatus, input.TargetStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Ticket{}, err
	}
	defer tx.Rollback(ctx)

	ticket, err := getTicketForUpdate(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if input.Actor.Role == store.RoleCustomer {
		return models.Ticket{}, store.ErrAccessDenied
	}
	if err := authorizeTicketAccess(ticket, input.Actor); err != nil {
		return models.Ticket{}, err
	}
	if !store.CanTransition(ticket.Status, input.TargetStatus) {
		return models.Ticket{}, fmt.Errorf("%w: %s -> %s", store.ErrInvalidStatus, ticket.Status, input.TargetStatus)
	}

	occurredAt := input.OccurredAt.UTC()
	noop := ticket.Status == input.TargetStatus
	ticket.Status = input.TargetStatus
	if input.Notes != "" {
		ticket.Notes = input.Notes
	}

	if !noop {
		switch input.TargetStatus {
		case models.StatusProcessing:
			if ticket.ProcessedAt == nil {
				ticket.ProcessedAt = &occurredAt
			}
			if ticket.ProcessedBy == nil && input.Actor.ID != "" {
				actorID := input.Actor.ID
				ticket.ProcessedBy = &actorID
			}
		case models.StatusCompleted:
			if ticket.CompletedAt == nil {
				ticket.CompletedAt = &occurredAt
			}
			if ticket.ProcessedBy == nil && input.Actor.ID != "" {
				actorID := input.Actor.ID
				ticket.ProcessedBy = &actorID
			}
		}
	}

	_, err = tx.Exec(ctx, `UPDATE tickets SET status = $2, notes = $3,
			processed_at = $4, completed_at = $5, processed_by = $6
		WHERE ticket_id = $1`,
		ticket.TicketID, ticket.Status, ticket.Notes,
		ticket.ProcessedAt, ticket.CompletedAt, ticket.ProcessedBy)
	if err != nil {
		return models.Ticket{}, err
	}

	if !noop {
		contact, err := loadContact(ctx, tx, ticket.CustomerID)
		if err != nil {
			return models.Ticket{}, err
		}
		eventType := store.EventProcessingStarted
		if input.TargetStatus == models.StatusCompleted {
			eventType = store.EventTicketCompleted
		}
		if err := recordLifecycleEvent(ctx, tx, eventType, ticket, contact, occurredAt); err != nil {
			return models.Ticket{}, err
		}
		if input.TargetStatus == models.StatusCompleted {
			if err := reassignArrivalWindows(ctx, tx, ticket.Organization, ticket.LocationName, occurredAt); err != nil {
				return models.Ticket{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

// reassignArrivalWindows recomputes windows for every pending ticket in
// the scope from its original wait estimate, anchored at a single
// completion instant. Processing and completed tickets keep the window
// they were last told.
func reassignArrivalWindows(ctx context.Context, tx pgx.Tx, organization, locationName string, now time.Time) error {
	rows, err := tx.Query(ctx, `UPDATE tickets SET
			arrival_start = $1::timestamptz + (estimated_wait_minutes - $2) * interval '1 minute',
			arrival_end   = $1::timestamptz + (estimated_wait_minutes - $2 + $3) * interval '1 minute'
		WHERE organization = $4 AND location_name = $5 AND status = $6
		RETURNING `+ticketColumns,
		now.UTC(), queue.ArrivalLeadMinutes, int(queue.ArrivalWindowSpan.Minutes()),
		organization, locationName, models.StatusPending)
	if err != nil {
		return err
	}

	var updated []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			rows.Close()
			return err
		}
		updated = append(updated, ticket)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ticket := range updated {
		contact, err := loadContact(ctx, tx, ticket.CustomerID)
		if err != nil {
			return err
		}
		if err := recordLifecycleEvent(ctx, tx, store.EventArrivalWindowAssigned, ticket, contact, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) MarkPITGenerated(ctx context.Context, input store.MarkPITInput) (models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Ticket{}, err
	}
	defer tx.Rollback(ctx)

	ticket, err := getTicketForUpdate(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if ticket.CustomerID != input.CustomerID {
		return models.Ticket{}, store.ErrAccessDenied
	}

	generatedAt := input.GeneratedAt.UTC()
	expiresAt := input.ExpiresAt.UTC()
	ticket.PIT = models.PITRecord{Generated: true, GeneratedAt: &generatedAt, ExpiresAt: &expiresAt}

	_, err = tx.Exec(ctx, `UPDATE tickets SET pit_generated = TRUE, pit_generated_at = $2, pit_expires_at = $3
		WHERE ticket_id = $1`, ticket.TicketID, generatedAt, expiresAt)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ApplyPITValidation(ctx context.Context, input store.PITValidationInput) (models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Ticket{}, err
	}
	defer tx.Rollback(ctx)

	ticket, err := getTicketForUpdate(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ticket.PIT.Generated || ticket.PIT.ExpiresAt == nil {
		return models.Ticket{}, store.ErrInvalidCredential
	}
	occurredAt := input.OccurredAt.UTC()
	if ticket.PIT.ExpiresAt.Before(occurredAt) {
		return models.Ticket{}, store.ErrPITExpired
	}

	// Validation of an already started or finished ticket is a no-op;
	// scanning a credential twice must not rewind anything.
	if ticket.Status != models.StatusPending {
		if err := tx.Commit(ctx); err != nil {
			return models.Ticket{}, err
		}
		return ticket, nil
	}

	ticket.Status = models.StatusProcessing
	ticket.Priority.Prepared = true
	ticket.ProcessedAt = &occurredAt
	if input.Actor.ID != "" {
		actorID := input.Actor.ID
		ticket.ProcessedBy = &actorID
	}

	_, err = tx.Exec(ctx, `UPDATE tickets SET status = $2, prepared = TRUE, processed_at = $3, processed_by = $4
		WHERE ticket_id = $1`, ticket.TicketID, ticket.Status, ticket.ProcessedAt, ticket.ProcessedBy)
	if err != nil {
		return models.Ticket{}, err
	}

	contact, err := loadContact(ctx, tx, ticket.CustomerID)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := recordLifecycleEvent(ctx, tx, store.EventProcessingStarted, ticket, contact, occurredAt); err != nil {
		return models.Ticket{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) AttachDocuments(ctx context.Context, input store.AttachDocumentsInput) (models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Ticket{}, err
	}
	defer tx.Rollback(ctx)

	ticket, err := getTicketForUpdate(ctx, tx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if ticket.CustomerID != input.CustomerID {
		return models.Ticket{}, store.ErrAccessDenied
	}

	ticket.Documents = append(ticket.Documents, input.Documents...)
	encoded, err := json.Marshal(ticket.Documents)
	if err != nil {
		return models.Ticket{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET documents = $2 WHERE ticket_id = $1`, ticket.TicketID, encoded); err != nil {
		return models.Ticket{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) TicketStats(ctx context.Context) (store.Stats, error) {
	stats := store.Stats{
		ByStatus:       map[string]int{},
		ByOrganization: map[string]int{},
	}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE booked_at >= date_trunc('day', now()))
		FROM tickets`).Scan(&stats.Total, &stats.Today)
	if err != nil {
		return store.Stats{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return store.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return store.Stats{}, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return store.Stats{}, err
	}

	orgRows, err := s.pool.Query(ctx, `SELECT organization, COUNT(*) FROM tickets GROUP BY organization`)
	if err != nil {
		return store.Stats{}, err
	}
	defer orgRows.Close()
	for orgRows.Next() {
		var organization string
		var count int
		if err := orgRows.Scan(&organization, &count); err != nil {
			return store.Stats{}, err
		}
		stats.ByOrganization[organization] = count
	}
	return stats, orgRows.Err()
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT event_id, type, payload_json, created_at
		FROM outbox_events WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2`, after.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash
		FROM ticket_events WHERE ticket_id = $1 ORDER BY ticket_seq ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.TicketEvent
	for rows.Next() {
		var event store.TicketEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload,
			&event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ConsumerOffset returns the high-water mark for a named outbox
// consumer, zero time if the consumer has never checkpointed.
func (s *Store) ConsumerOffset(ctx context.Context, consumer string) (time.Time, error) {
	var last time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_event_time FROM consumer_offsets WHERE consumer = $1`, consumer).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return last, err
}

func (s *Store) SetConsumerOffset(ctx context.Context, consumer string, last time.Time, lastEventID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO consumer_offsets (consumer, last_event_time, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer) DO UPDATE SET last_event_time = EXCLUDED.last_event_time, last_event_id = EXCLUDED.last_event_id`,
		consumer, last.UTC(), lastEventID)
	return err
}

// CreateCustomer registers a customer contact record. Exposed for
// provisioning and tests; the booking flow assumes the customer exists.
func (s *Store) CreateCustomer(ctx context.Context, customerID, firstName, lastName string, contact models.Contact) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO customers (customer_id, first_name, last_name, email, device_token, email_enabled, push_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id) DO UPDATE SET
			email = EXCLUDED.email, device_token = EXCLUDED.device_token,
			email_enabled = EXCLUDED.email_enabled, push_enabled = EXCLUDED.push_enabled`,
		customerID, firstName, lastName, contact.Email, contact.DeviceToken, contact.EmailEnabled, contact.PushEnabled)
	return err
}
