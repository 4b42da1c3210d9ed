package domain

import (
	"time"

	"github.com/google/uuid"
)

type NegotiationStatus string

const (
	NegotiationStatusOpen             NegotiationStatus = "open"
	NegotiationStatusAwaitingResponse NegotiationStatus = "awaiting_response"
	NegotiationStatusAccepted         NegotiationStatus = "accepted"
	NegotiationStatusCancelled        NegotiationStatus = "cancelled"
)

var negotiationTransitions = newTransitionTable[NegotiationStatus]().
	Allow(NegotiationStatusOpen, NegotiationStatusAwaitingResponse, NegotiationStatusAccepted, NegotiationStatusCancelled).
	Allow(NegotiationStatusAwaitingResponse, NegotiationStatusAccepted, NegotiationStatusCancelled)

// IsActive reports whether the session still blocks a new negotiation on the same proposal.
func (s NegotiationStatus) IsActive() bool {
	return s == NegotiationStatusOpen || s == NegotiationStatusAwaitingResponse
}

func (s NegotiationStatus) CanTransitionTo(to NegotiationStatus) bool {
	return negotiationTransitions.Allowed(s, to)
}

// ActiveNegotiationStatuses are the statuses covered by the one-active-session-per-proposal rule.
func ActiveNegotiationStatuses() []NegotiationStatus {
	return []NegotiationStatus{NegotiationStatusOpen, NegotiationStatusAwaitingResponse}
}

type NegotiationSession struct {
	ID                   uuid.UUID             `json:"id"`
	ProjectID            uuid.UUID             `json:"project_id"`
	ProposalID           uuid.UUID             `json:"proposal_id"`
	AdvisorID            uuid.UUID             `json:"advisor_id"`
	InitiatorID          uuid.UUID             `json:"initiator_id"`
	Status               NegotiationStatus     `json:"status"`
	TargetPrice          *float64              `json:"target_price,omitempty"`
	TargetReductionPct   *float64              `json:"target_reduction_pct,omitempty"`
	Message              string                `json:"message"`
	FileRefs             []string              `json:"file_refs"`
	LineItemAdjustments  []LineItemAdjustment  `json:"line_item_adjustments"`
	MilestoneAdjustments []MilestoneAdjustment `json:"milestone_adjustments"`
	BaseVersionID        *uuid.UUID            `json:"base_version_id,omitempty"`
	ResponseVersionID    *uuid.UUID            `json:"response_version_id,omitempty"`
	ConsultantMessage    string                `json:"consultant_message,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	ResolvedAt           *time.Time            `json:"resolved_at,omitempty"`
}

// LineItemAdjustment is the entrepreneur's requested price for one proposal line item.
type LineItemAdjustment struct {
	LineItemID    string   `json:"line_item_id"`
	OriginalPrice float64  `json:"original_price"`
	TargetPrice   *float64 `json:"target_price,omitempty"`
	Note          string   `json:"note,omitempty"`
}

type MilestoneAdjustment struct {
	MilestoneID        string  `json:"milestone_id"`
	OriginalPercentage float64 `json:"original_percentage"`
	TargetPercentage   float64 `json:"target_percentage"`
}
