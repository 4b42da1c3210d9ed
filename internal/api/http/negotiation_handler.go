package http

import (
	"net/http"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type NegotiationHandler struct {
	negotiationSvc service.NegotiationService
	validate       *validator.Validate
}

func NewNegotiationHandler(negotiationSvc service.NegotiationService, v *validator.Validate) *NegotiationHandler {
	return &NegotiationHandler{negotiationSvc: negotiationSvc, validate: v}
}

type lineItemAdjustmentInput struct {
	LineItemID    string   `json:"line_item_id" validate:"required,max=100"`
	OriginalPrice float64  `json:"original_price" validate:"gte=0"`
	TargetPrice   *float64 `json:"target_price" validate:"omitempty,gte=0"`
	Note          string   `json:"note" validate:"max=1000"`
}

type milestoneAdjustmentInput struct {
	MilestoneID        string  `json:"milestone_id" validate:"required,max=100"`
	OriginalPercentage float64 `json:"original_percentage" validate:"gte=0,lte=100"`
	TargetPercentage   float64 `json:"target_percentage" validate:"gte=0,lte=100"`
}

type requestNegotiationInput struct {
	ProposalID           string                     `json:"proposal_id" validate:"required,uuid"`
	TargetPrice          *float64                   `json:"target_price" validate:"omitempty,gt=0"`
	TargetReductionPct   *float64                   `json:"target_reduction_pct" validate:"omitempty,gt=0,lt=100"`
	Message              string                     `json:"message" validate:"max=5000"`
	FileRefs             []string                   `json:"file_refs" validate:"max=20,dive,required,max=500"`
	LineItemAdjustments  []lineItemAdjustmentInput  `json:"line_item_adjustments" validate:"dive"`
	MilestoneAdjustments []milestoneAdjustmentInput `json:"milestone_adjustments" validate:"dive"`
}

// RequestNegotiation handles POST /functions/v1/request-negotiation
func (h *NegotiationHandler) RequestNegotiation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return
	}

	var input requestNegotiationInput
	if err := decodeAndValidate(r, h.validate, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &service.NegotiationRequest{
		ProposalID:         uuid.MustParse(input.ProposalID),
		TargetPrice:        input.TargetPrice,
		TargetReductionPct: input.TargetReductionPct,
		Message:            input.Message,
		FileRefs:           input.FileRefs,
	}
	for _, a := range input.LineItemAdjustments {
		req.LineItemAdjustments = append(req.LineItemAdjustments, domain.LineItemAdjustment{
			LineItemID:    a.LineItemID,
			OriginalPrice: a.OriginalPrice,
			TargetPrice:   a.TargetPrice,
			Note:          a.Note,
		})
	}
	for _, m := range input.MilestoneAdjustments {
		req.MilestoneAdjustments = append(req.MilestoneAdjustments, domain.MilestoneAdjustment{
			MilestoneID:        m.MilestoneID,
			OriginalPercentage: m.OriginalPercentage,
			TargetPercentage:   m.TargetPercentage,
		})
	}

	session, err := h.negotiationSvc.RequestNegotiation(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

type lineItemInput struct {
	ID          string   `json:"id" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
}

type respondNegotiationInput struct {
	SessionID    string          `json:"session_id" validate:"required,uuid"`
	LineItems    []lineItemInput `json:"line_items" validate:"required,min=1,dive"`
	TimelineDays *int            `json:"timeline_days" validate:"omitempty,gt=0"`
	Message      string          `json:"message" validate:"max=5000"`
}

// RespondNegotiation handles POST /functions/v1/respond-negotiation
func (h *NegotiationHandler) RespondNegotiation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return
	}

	var input respondNegotiationInput
	if err := decodeAndValidate(r, h.validate, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := &service.NegotiationReply{
		SessionID:    uuid.MustParse(input.SessionID),
		TimelineDays: input.TimelineDays,
		Message:      input.Message,
	}
	for _, it := range input.LineItems {
		reply.LineItems = append(reply.LineItems, domain.LineItem{ID: it.ID, Description: it.Description, Price: *it.Price})
	}

	result, err := h.negotiationSvc.Respond(r.Context(), userID, reply)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cancelNegotiationInput struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// CancelNegotiation handles POST /functions/v1/cancel-negotiation
func (h *NegotiationHandler) CancelNegotiation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return
	}

	var input cancelNegotiationInput
	if err := decodeAndValidate(r, h.validate, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.negotiationSvc.Cancel(r.Context(), userID, uuid.MustParse(input.SessionID), input.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}
