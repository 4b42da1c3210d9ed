package domain

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InviteStatusSent       InviteStatus = "sent"
	InviteStatusOpened     InviteStatus = "opened"
	InviteStatusInProgress InviteStatus = "in_progress"
	InviteStatusSubmitted  InviteStatus = "submitted"
	InviteStatusDeclined   InviteStatus = "declined"
	InviteStatusExpired    InviteStatus = "expired"
)

// Actor identifies who is asking for an invite transition.
type Actor string

const (
	ActorAdvisor Actor = "advisor"
	ActorSystem  Actor = "system"
)

// inviteTransitions is the single transition table shared by every handler and job.
// Forward moves may skip intermediate states: an advisor can submit without opening first.
var inviteTransitions = newTransitionTable[InviteStatus]().
	Allow(InviteStatusSent, InviteStatusOpened, InviteStatusInProgress, InviteStatusSubmitted, InviteStatusDeclined, InviteStatusExpired).
	Allow(InviteStatusOpened, InviteStatusInProgress, InviteStatusSubmitted, InviteStatusDeclined, InviteStatusExpired).
	Allow(InviteStatusInProgress, InviteStatusSubmitted, InviteStatusDeclined, InviteStatusExpired)

// Valid reports whether s is one of the known statuses.
func (s InviteStatus) Valid() bool {
	switch s {
	case InviteStatusSent, InviteStatusOpened, InviteStatusInProgress,
		InviteStatusSubmitted, InviteStatusDeclined, InviteStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s InviteStatus) IsTerminal() bool {
	return s == InviteStatusSubmitted || s == InviteStatusDeclined || s == InviteStatusExpired
}

// CanTransition reports whether actor may move an invite from one status to another.
// Only the system actor may assign expired.
func CanTransition(from, to InviteStatus, actor Actor) bool {
	if to == InviteStatusExpired && actor != ActorSystem {
		return false
	}
	return inviteTransitions.Allowed(from, to)
}

// InviteSourcesFor returns every status from which to is reachable.
// Repositories use it to guard UPDATE statements against concurrent changes.
func InviteSourcesFor(to InviteStatus) []InviteStatus {
	return inviteTransitions.Sources(to)
}

// ExpirableInviteStatuses are the statuses the expiration job sweeps.
func ExpirableInviteStatuses() []InviteStatus {
	return InviteSourcesFor(InviteStatusExpired)
}

type RFPInvite struct {
	ID                 uuid.UUID    `json:"id"`
	RFPID              uuid.UUID    `json:"rfp_id"`
	AdvisorID          uuid.UUID    `json:"advisor_id"`
	Email              string       `json:"email"`
	Status             InviteStatus `json:"status"`
	DeadlineAt         *time.Time   `json:"deadline_at,omitempty"`
	ReminderStage      int          `json:"reminder_stage"`
	LastNotificationAt *time.Time   `json:"last_notification_at,omitempty"`
	DeliveredAt        *time.Time   `json:"delivered_at,omitempty"`
	EmailAttempts      int          `json:"email_attempts"`
	EmailLastError     *string      `json:"email_last_error,omitempty"`
	DeclineReason      *string      `json:"decline_reason,omitempty"`
	OpenedAt           *time.Time   `json:"opened_at,omitempty"`
	SubmittedAt        *time.Time   `json:"submitted_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// ReminderCandidate is an invite joined with the context a reminder email needs.
type ReminderCandidate struct {
	RFPInvite
	ProjectID        uuid.UUID
	ProjectName      string
	AdvisorCompany   string
	EntrepreneurName string
}

// DaysToDeadline returns whole days (rounded up) until the deadline, or nil when no deadline is set.
func (i *RFPInvite) DaysToDeadline(now time.Time) *int {
	if i.DeadlineAt == nil {
		return nil
	}
	d := i.DeadlineAt.Sub(now)
	days := int(d / (24 * time.Hour))
	if d > 0 && d%(24*time.Hour) != 0 {
		days++
	}
	return &days
}
