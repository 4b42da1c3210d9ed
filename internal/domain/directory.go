package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Notification categories team members can subscribe to.
const (
	CategoryRFPInvites   = "rfp_invites"
	CategoryRFPReminders = "rfp_reminders"
	CategoryNegotiations = "negotiations"
)

type Profile struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

type Advisor struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Email       string    `json:"email"`
}

type Project struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}

type RFP struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	SentBy    uuid.UUID `json:"sent_by"`
	Subject   string    `json:"subject"`
}

// TeamMember is an additional recipient on an advisor's account.
type TeamMember struct {
	ID                      uuid.UUID `json:"id"`
	AdvisorID               uuid.UUID `json:"advisor_id"`
	Name                    string    `json:"name"`
	Email                   string    `json:"email"`
	IsActive                bool      `json:"is_active"`
	NotificationPreferences []string  `json:"notification_preferences"`
}

func (m TeamMember) SubscribedTo(category string) bool {
	return m.IsActive && slices.Contains(m.NotificationPreferences, category)
}
