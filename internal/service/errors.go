package service

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound                   = errors.New("not found")
	ErrForbidden                  = errors.New("not allowed to act on this record")
	ErrInvalidTransition          = errors.New("invalid status transition")
	ErrSessionNotAwaitingResponse = errors.New("negotiation session is not awaiting a response")
	ErrValidation                 = errors.New("validation failed")

	// ErrPersistence wraps a failed database write; the message carries the underlying error.
	ErrPersistence = errors.New("failed to save changes")

	// ErrReminderNotRecorded means the reminder email went out but its stage was not saved.
	ErrReminderNotRecorded = errors.New("reminder sent but not recorded")
)

// ActiveNegotiationError reports the session that blocks a new negotiation on the same proposal.
type ActiveNegotiationError struct {
	ExistingSessionID uuid.UUID
}

func (e *ActiveNegotiationError) Error() string {
	return "an active negotiation already exists for this proposal: " + e.ExistingSessionID.String()
}
