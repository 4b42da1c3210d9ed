package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActivityInviteSent           = "rfp_invite_sent"
	ActivityInviteEmailFailed    = "rfp_invite_email_failed"
	ActivityInviteStatusChanged  = "rfp_invite_status_changed"
	ActivityInviteExpired        = "rfp_invite_expired"
	ActivityReminderSent         = "rfp_reminder_sent"
	ActivityNegotiationRequested = "negotiation_requested"
	ActivityNegotiationResponded = "negotiation_responded"
	ActivityNegotiationCancelled = "negotiation_cancelled"
	ActivityNotificationSent     = "notification_sent"
)

const (
	EntityRFPInvite   = "rfp_invite"
	EntityNegotiation = "negotiation_session"
	EntityProposal    = "proposal"
)

// ActivityLog is one audit row in activity_log.
type ActivityLog struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	ProjectID  *uuid.UUID     `json:"project_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
