package store

import "errors"

var (
	ErrValidation          = errors.New("invalid request")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidStatus       = errors.New("invalid ticket status")
	ErrIncompleteChecklist = errors.New("checklist incomplete")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrPITExpired          = errors.New("pit expired")
	ErrConflict            = errors.New("write conflict")
)
