package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fairq/queue-service/internal/models"
	"fairq/queue-service/internal/pit"
	"fairq/queue-service/internal/queue"
	"fairq/queue-service/internal/store"
)

type Handler struct {
	store  store.TicketStore
	issuer *pit.Issuer
}

func NewHandler(ticketStore store.TicketStore, issuer *pit.Issuer) *Handler {
	return &Handler{store: ticketStore, issuer: issuer}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/pit-eligible", h.handlePITEligible)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubroutes)
	mux.HandleFunc("/api/queues/", h.handleQueueView)
	mux.HandleFunc("/api/pit/generate", h.handleGeneratePIT)
	mux.HandleFunc("/api/pit/validate", h.handleValidatePIT)
	mux.HandleFunc("/api/stats", h.handleStats)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type bookTicketRequest struct {
	Organization string `json:"organization"`
	LocationName string `json:"location_name"`
	ServiceType  string `json:"service_type"`
	Purpose      string `json:"purpose"`
	Emergency    bool   `json:"emergency"`
	Elderly      bool   `json:"elderly"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleBookTicket(w, r)
	case http.MethodGet:
		h.handleListTickets(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBookTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req bookTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Organization = strings.TrimSpace(req.Organization)
	req.LocationName = strings.TrimSpace(req.LocationName)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	req.Purpose = strings.TrimSpace(req.Purpose)

	if req.Organization == "" || req.ServiceType == "" || req.Purpose == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "organization, service_type, and purpose are required")
		return
	}
	if !models.ValidOrganization(req.Organization) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown organization")
		return
	}

	ticket, err := h.store.BookTicket(r.Context(), store.BookTicketInput{
		CustomerID:   actor.ID,
		Organization: req.Organization,
		LocationName: req.LocationName,
		ServiceType:  req.ServiceType,
		Purpose:      req.Purpose,
		Emergency:    req.Emergency,
		Elderly:      req.Elderly,
		BookedAt:     time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	ticketsBookedTotal.Inc()
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		customerID = actor.ID
	}
	if customerID != actor.ID && actor.Role == store.RoleCustomer {
		writeError(w, http.StatusForbidden, "access_denied", "customers may only list their own tickets")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !store.ValidTarget(status) && status != models.StatusCancelled {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}

	tickets, err := h.store.ListCustomerTickets(r.Context(), customerID, status)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handlePITEligible(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tickets, err := h.store.ListPITEligible(r.Context(), actor.ID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleTicketSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		h.handleUpdateStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "documents":
		h.handleAttachDocuments(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		h.handleTicketEvents(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ticket, err := h.store.GetTicket(r.Context(), ticketID, actor)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	ticket, err := h.store.UpdateTicketStatus(r.Context(), store.UpdateStatusInput{
		TicketID:     ticketID,
		TargetStatus: req.Status,
		Notes:        strings.TrimSpace(req.Notes),
		Actor:        actor,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if ticket.Status == models.StatusCompleted {
		ticketsCompletedTotal.Inc()
	}
	writeJSON(w, http.StatusOK, ticket)
}

type attachDocumentsRequest struct {
	Documents []documentRecord `json:"documents"`
}

type documentRecord struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

func (h *Handler) handleAttachDocuments(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req attachDocumentsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "documents are required")
		return
	}

	now := time.Now().UTC()
	documents := make([]models.Document, 0, len(req.Documents))
	for _, doc := range req.Documents {
		doc.FileName = strings.TrimSpace(doc.FileName)
		doc.FileURL = strings.TrimSpace(doc.FileURL)
		if doc.FileName == "" || doc.FileURL == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "file_name and file_url are required for every document")
			return
		}
		documents = append(documents, models.Document{FileName: doc.FileName, FileURL: doc.FileURL, UploadedAt: now})
	}

	ticket, err := h.store.AttachDocuments(r.Context(), store.AttachDocumentsInput{
		TicketID:   ticketID,
		CustomerID: actor.ID,
		Documents:  documents,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	// Access is checked by loading the ticket first.
	if _, err := h.store.GetTicket(r.Context(), ticketID, actor); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	events, err := h.store.ListTicketEvents(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if events == nil {
		events = []store.TicketEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// queueEntry pairs a ticket with its place in the current service order,
// which shifts with priority and is distinct from the booking position.
type queueEntry struct {
	ServeOrder int           `json:"serve_order"`
	Ticket     models.Ticket `json:"ticket"`
}

func (h *Handler) handleQueueView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	serviceType := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/queues/"), "/")
	if serviceType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "service type is required")
		return
	}

	tickets, err := h.store.ListActiveByServiceType(r.Context(), serviceType)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	ordered := queue.Reorder(tickets)
	entries := make([]queueEntry, 0, len(ordered))
	for i, ticket := range ordered {
		entries = append(entries, queueEntry{ServeOrder: i + 1, Ticket: ticket})
	}
	writeJSON(w, http.StatusOK, entries)
}

type generatePITRequest struct {
	TicketID  string   `json:"ticket_id"`
	Checklist []string `json:"checklist"`
}

type generatePITResponse struct {
	Token     string        `json:"token"`
	QRCode    string        `json:"qr_code"`
	ExpiresAt time.Time     `json:"expires_at"`
	Ticket    models.Ticket `json:"ticket"`
}

func (h *Handler) handleGeneratePIT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req generatePITRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.TicketID = strings.TrimSpace(req.TicketID)
	if req.TicketID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id is required")
		return
	}
	if len(req.Checklist) == 0 {
		status, code, msg := mapError(store.ErrIncompleteChecklist)
		writeError(w, status, code, msg)
		return
	}

	token, expiresAt, err := h.issuer.Issue(req.TicketID, actor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "credential issue failed")
		return
	}

	ticket, err := h.store.MarkPITGenerated(r.Context(), store.MarkPITInput{
		TicketID:    req.TicketID,
		CustomerID:  actor.ID,
		GeneratedAt: time.Now().UTC(),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	qr, err := pit.QRDataURL(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "qr encoding failed")
		return
	}

	writeJSON(w, http.StatusOK, generatePITResponse{
		Token:     token,
		QRCode:    qr,
		ExpiresAt: expiresAt,
		Ticket:    ticket,
	})
}

type validatePITRequest struct {
	Token string `json:"token"`
}

type validatePITResponse struct {
	Valid  bool          `json:"valid"`
	Ticket models.Ticket `json:"ticket"`
}

func (h *Handler) handleValidatePIT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req validatePITRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	claims, err := h.issuer.Verify(req.Token)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	ticket, err := h.store.ApplyPITValidation(r.Context(), store.PITValidationInput{
		TicketID:   claims.TicketID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, validatePITResponse{Valid: true, Ticket: ticket})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	stats, err := h.store.TicketStats(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var after time.Time
	if afterRaw := strings.TrimSpace(r.URL.Query().Get("after")); afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be an RFC3339 timestamp")
			return
		}
		after = parsed
	}
	limit := parseLimit(strings.TrimSpace(r.URL.Query().Get("limit")), 100)

	events, err := h.store.ListOutboxEvents(r.Context(), after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found", "customer not found"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusConflict, "invalid_status", "ticket status does not allow this transition"
	case errors.Is(err, store.ErrIncompleteChecklist):
		return http.StatusBadRequest, "incomplete_checklist", "preparation checklist must be completed first"
	case errors.Is(err, store.ErrInvalidCredential):
		return http.StatusBadRequest, "invalid_credential", "credential is invalid"
	case errors.Is(err, store.ErrPITExpired):
		return http.StatusUnauthorized, "pit_expired", "credential has expired"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", "operation conflicted, retry"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
