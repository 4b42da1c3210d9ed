package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusSubmitted            ProposalStatus = "submitted"
	ProposalStatusNegotiationRequested ProposalStatus = "negotiation_requested"
	ProposalStatusResubmitted          ProposalStatus = "resubmitted"
	ProposalStatusAccepted             ProposalStatus = "accepted"
	ProposalStatusRejected             ProposalStatus = "rejected"
	ProposalStatusWithdrawn            ProposalStatus = "withdrawn"
)

type Proposal struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      uuid.UUID      `json:"project_id"`
	AdvisorID      uuid.UUID      `json:"advisor_id"`
	Price          float64        `json:"price"`
	TimelineDays   int            `json:"timeline_days"`
	ScopeText      string         `json:"scope_text"`
	Terms          string         `json:"terms"`
	LineItems      []LineItem     `json:"line_items"`
	Status         ProposalStatus `json:"status"`
	CurrentVersion int            `json:"current_version"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// ProposalVersion is an immutable snapshot of a proposal's commercial terms.
type ProposalVersion struct {
	ID            uuid.UUID  `json:"id"`
	ProposalID    uuid.UUID  `json:"proposal_id"`
	VersionNumber int        `json:"version_number"`
	Price         float64    `json:"price"`
	TimelineDays  int        `json:"timeline_days"`
	ScopeText     string     `json:"scope_text"`
	Terms         string     `json:"terms"`
	LineItems     []LineItem `json:"line_items"`
	ChangeReason  string     `json:"change_reason"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SnapshotVersion builds the first version of a proposal from its current terms.
func (p *Proposal) SnapshotVersion(createdBy uuid.UUID, reason string) *ProposalVersion {
	items := make([]LineItem, len(p.LineItems))
	copy(items, p.LineItems)
	return &ProposalVersion{
		ProposalID:    p.ID,
		VersionNumber: 1,
		Price:         p.Price,
		TimelineDays:  p.TimelineDays,
		ScopeText:     p.ScopeText,
		Terms:         p.Terms,
		LineItems:     items,
		ChangeReason:  reason,
		CreatedBy:     createdBy,
	}
}

// SumLineItems totals item prices, rounded to agorot.
func SumLineItems(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return math.Round(total*100) / 100
}
