package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fairq/queue-service/internal/models"
	"fairq/queue-service/internal/queue"
	"fairq/queue-service/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping postgres integration tests")
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(admin.Close)

	schema := fmt.Sprintf("qtest_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect schema pool: %v", err)
	}
	t.Cleanup(pool.Close)

	applyMigrations(t, pool)
	return New(pool)
}

func applyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".sql" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := pool.Exec(context.Background(), string(raw)); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
	}
}

func seedCustomer(t *testing.T, s *Store) string {
	t.Helper()
	customerID := uuid.NewString()
	err := s.CreateCustomer(context.Background(), customerID, "Test", "Customer", models.Contact{
		CustomerID:   customerID,
		Email:        "customer@example.com",
		DeviceToken:  "device-1",
		EmailEnabled: true,
		PushEnabled:  true,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customerID
}

func bookInput(customerID, organization, location string) store.BookTicketInput {
	return store.BookTicketInput{
		CustomerID:   customerID,
		Organization: organization,
		LocationName: location,
		ServiceType:  "General",
		Purpose:      "inquiry",
		BookedAt:     time.Now(),
	}
}

func TestBookTicketAssignsSequentialPositions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()

	for want := 1; want <= 3; want++ {
		ticket, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
		if err != nil {
			t.Fatalf("book %d: %v", want, err)
		}
		if ticket.QueuePosition != want {
			t.Fatalf("position = %d, want %d", ticket.QueuePosition, want)
		}
		if ticket.EstimatedWaitMinutes != want*queue.PerTicketMinutes {
			t.Fatalf("wait = %d, want %d", ticket.EstimatedWaitMinutes, want*queue.PerTicketMinutes)
		}
		if ticket.ArrivalWindow == nil {
			t.Fatal("expected arrival window at booking")
		}
	}
}

func TestBookTicketConcurrentDistinctPositions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()

	const n = 8
	positions := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
			if err != nil {
				t.Errorf("book: %v", err)
				return
			}
			positions <- ticket.QueuePosition
		}()
	}
	wg.Wait()
	close(positions)

	seen := map[int]bool{}
	for p := range positions {
		if seen[p] {
			t.Fatalf("duplicate position %d", p)
		}
		seen[p] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d positions, want %d", len(seen), n)
	}
}

func TestBookTicketScopeIsolation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)

	a, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, "Downtown"))
	if err != nil {
		t.Fatalf("book a: %v", err)
	}
	b, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, "Uptown"))
	if err != nil {
		t.Fatalf("book b: %v", err)
	}
	if a.QueuePosition != 1 || b.QueuePosition != 1 {
		t.Fatalf("expected independent position counters, got %d and %d", a.QueuePosition, b.QueuePosition)
	}
}

func TestUpdateTicketStatusLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()
	staff := store.Actor{ID: uuid.NewString(), Role: store.RoleStaff, Organization: models.OrgBank, LocationName: location}

	ticket, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	// Pending -> Completed must be rejected.
	_, err = s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: ticket.TicketID, TargetStatus: models.StatusCompleted, Actor: staff, OccurredAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected Pending -> Completed rejection")
	}

	updated, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: ticket.TicketID, TargetStatus: models.StatusProcessing, Actor: staff, OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if updated.ProcessedAt == nil || updated.ProcessedBy == nil || *updated.ProcessedBy != staff.ID {
		t.Fatalf("expected processing metadata, got %+v", updated)
	}

	firstProcessedAt := *updated.ProcessedAt
	again, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: ticket.TicketID, TargetStatus: models.StatusProcessing, Actor: staff,
		Notes: "checked in", OccurredAt: time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("repeat processing: %v", err)
	}
	if !again.ProcessedAt.Equal(firstProcessedAt) {
		t.Fatal("repeat transition must not move processed_at")
	}
	if again.Notes != "checked in" {
		t.Fatalf("notes = %q", again.Notes)
	}

	done, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: ticket.TicketID, TargetStatus: models.StatusCompleted, Actor: staff, OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at")
	}

	events, err := s.ListTicketEvents(ctx, ticket.TicketID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if err := store.VerifyEventChain(events); err != nil {
		t.Fatalf("event chain: %v", err)
	}
}

func TestCompletionReassignsPendingWindows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()
	staff := store.Actor{ID: uuid.NewString(), Role: store.RoleStaff, Organization: models.OrgBank, LocationName: location}

	first, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
	if err != nil {
		t.Fatalf("book first: %v", err)
	}
	second, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
	if err != nil {
		t.Fatalf("book second: %v", err)
	}
	other, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location+"-other"))
	if err != nil {
		t.Fatalf("book other scope: %v", err)
	}

	if _, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: first.TicketID, TargetStatus: models.StatusProcessing, Actor: staff, OccurredAt: time.Now(),
	}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	completedAt := time.Now()
	if _, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: first.TicketID, TargetStatus: models.StatusCompleted, Actor: staff, OccurredAt: completedAt,
	}); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	admin := store.Actor{ID: uuid.NewString(), Role: store.RoleAdmin}
	reloaded, err := s.GetTicket(ctx, second.TicketID, admin)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	wantStart := completedAt.UTC().Add(time.Duration(second.EstimatedWaitMinutes-queue.ArrivalLeadMinutes) * time.Minute)
	if reloaded.ArrivalWindow == nil || reloaded.ArrivalWindow.Start.Sub(wantStart).Abs() > time.Second {
		t.Fatalf("window start = %v, want ~%v", reloaded.ArrivalWindow, wantStart)
	}
	if reloaded.ArrivalWindow.End.Sub(reloaded.ArrivalWindow.Start) != queue.ArrivalWindowSpan {
		t.Fatalf("window span = %v", reloaded.ArrivalWindow.End.Sub(reloaded.ArrivalWindow.Start))
	}

	untouched, err := s.GetTicket(ctx, other.TicketID, admin)
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	// timestamptz stores microseconds, so compare with a small tolerance.
	if untouched.ArrivalWindow.Start.Sub(other.ArrivalWindow.Start).Abs() > time.Millisecond {
		t.Fatal("completion must not touch windows in another scope")
	}
}

func TestPITFlow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()

	ticket, err := s.BookTicket(ctx, bookInput(customerID, models.OrgBank, location))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	eligible, err := s.ListPITEligible(ctx, customerID)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].TicketID != ticket.TicketID {
		t.Fatalf("eligible = %+v", eligible)
	}

	// Validation before generation must fail.
	if _, err := s.ApplyPITValidation(ctx, store.PITValidationInput{
		TicketID: ticket.TicketID, OccurredAt: time.Now(),
	}); err != store.ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	now := time.Now()
	marked, err := s.MarkPITGenerated(ctx, store.MarkPITInput{
		TicketID: ticket.TicketID, CustomerID: customerID,
		GeneratedAt: now, ExpiresAt: now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !marked.PIT.Generated {
		t.Fatal("expected pit generated")
	}

	if eligible, err = s.ListPITEligible(ctx, customerID); err != nil || len(eligible) != 0 {
		t.Fatalf("eligible after generation = %+v, %v", eligible, err)
	}

	staff := store.Actor{ID: uuid.NewString(), Role: store.RoleStaff, Organization: models.OrgBank, LocationName: location}
	validated, err := s.ApplyPITValidation(ctx, store.PITValidationInput{
		TicketID: ticket.TicketID, Actor: staff, OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Status != models.StatusProcessing || !validated.Priority.Prepared {
		t.Fatalf("validated = %+v", validated)
	}

	repeat, err := s.ApplyPITValidation(ctx, store.PITValidationInput{
		TicketID: ticket.TicketID, Actor: staff, OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("repeat validate: %v", err)
	}
	if repeat.Status != models.StatusProcessing {
		t.Fatalf("repeat status = %s", repeat.Status)
	}

	if _, err := s.MarkPITGenerated(ctx, store.MarkPITInput{
		TicketID: ticket.TicketID, CustomerID: customerID,
		GeneratedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	if _, err := s.ApplyPITValidation(ctx, store.PITValidationInput{
		TicketID: ticket.TicketID, OccurredAt: time.Now(),
	}); err != store.ErrPITExpired {
		t.Fatalf("expected ErrPITExpired, got %v", err)
	}
}

func TestAccessControl(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := seedCustomer(t, s)
	stranger := seedCustomer(t, s)
	location := uuid.NewString()

	ticket, err := s.BookTicket(ctx, bookInput(owner, models.OrgHospital, location))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := s.GetTicket(ctx, ticket.TicketID, store.Actor{ID: stranger, Role: store.RoleCustomer}); err != store.ErrAccessDenied {
		t.Fatalf("stranger read: %v", err)
	}
	if _, err := s.GetTicket(ctx, ticket.TicketID, store.Actor{
		ID: uuid.NewString(), Role: store.RoleStaff, Organization: models.OrgBank,
	}); err != store.ErrAccessDenied {
		t.Fatalf("cross-org staff read: %v", err)
	}
	if _, err := s.UpdateTicketStatus(ctx, store.UpdateStatusInput{
		TicketID: ticket.TicketID, TargetStatus: models.StatusProcessing,
		Actor: store.Actor{ID: owner, Role: store.RoleCustomer}, OccurredAt: time.Now(),
	}); err != store.ErrAccessDenied {
		t.Fatalf("customer status change: %v", err)
	}
	if _, err := s.MarkPITGenerated(ctx, store.MarkPITInput{
		TicketID: ticket.TicketID, CustomerID: stranger,
		GeneratedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}); err != store.ErrAccessDenied {
		t.Fatalf("stranger pit generation: %v", err)
	}
}

func TestAttachDocumentsAndOutbox(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	customerID := seedCustomer(t, s)
	location := uuid.NewString()

	before := time.Now().Add(-time.Minute)
	ticket, err := s.BookTicket(ctx, bookInput(customerID, models.OrgHospital, location))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(ticket.RequiredDocuments) == 0 {
		t.Fatal("expected required documents for hospital tickets")
	}

	updated, err := s.AttachDocuments(ctx, store.AttachDocumentsInput{
		TicketID:   ticket.TicketID,
		CustomerID: customerID,
		Documents: []models.Document{
			{FileName: "id-card.png", FileURL: "https://files.example.com/id-card.png", UploadedAt: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(updated.Documents) != 1 {
		t.Fatalf("documents = %+v", updated.Documents)
	}

	events, err := s.ListOutboxEvents(ctx, before, 50)
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	found := false
	for _, event := range events {
		if event.Type == store.EventTicketBooked {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ticket.booked outbox event")
	}
}
