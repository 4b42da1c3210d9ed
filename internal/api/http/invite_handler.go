package http

import (
	"net/http"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type InviteHandler struct {
	inviteSvc service.InviteService
	validate  *validator.Validate
}

func NewInviteHandler(inviteSvc service.InviteService, v *validator.Validate) *InviteHandler {
	return &InviteHandler{inviteSvc: inviteSvc, validate: v}
}

type dispatchRFPInput struct {
	RFPID      string     `json:"rfp_id" validate:"required,uuid"`
	AdvisorIDs []string   `json:"advisor_ids" validate:"required,min=1,max=50,dive,uuid"`
	DeadlineAt *time.Time `json:"deadline_at"`
}

// DispatchRFP handles POST /functions/v1/dispatch-rfp
func (h *InviteHandler) DispatchRFP(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return
	}

	var input dispatchRFPInput
	if err := decodeAndValidate(r, h.validate, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	advisorIDs := make([]uuid.UUID, 0, len(input.AdvisorIDs))
	for _, id := range input.AdvisorIDs {
		advisorIDs = append(advisorIDs, uuid.MustParse(id))
	}

	result, err := h.inviteSvc.DispatchRFP(r.Context(), userID, uuid.MustParse(input.RFPID), advisorIDs, input.DeadlineAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type updateInviteStatusInput struct {
	InviteID      string  `json:"invite_id" validate:"required,uuid"`
	Status        string  `json:"status" validate:"required,oneof=sent opened in_progress submitted declined expired"`
	DeclineReason *string `json:"decline_reason" validate:"omitempty,max=1000"`
}

// UpdateStatus handles POST /functions/v1/update-invite-status
func (h *InviteHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return
	}

	var input updateInviteStatusInput
	if err := decodeAndValidate(r, h.validate, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.inviteSvc.Transition(r.Context(), userID, uuid.MustParse(input.InviteID), domain.InviteStatus(input.Status), input.DeclineReason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invite": inv})
}
