package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/service"

	"github.com/go-playground/validator/v10"
)

const errActiveNegotiationExists = "ACTIVE_NEGOTIATION_EXISTS"

type errorResponse struct {
	Error string `json:"error"`
}

type conflictResponse struct {
	Error             string `json:"error"`
	ExistingSessionID string `json:"existing_session_id"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors to responses. Business and authorization
// failures are 400s; the client shows the message as is.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *service.ActiveNegotiationError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:             errActiveNegotiationExists,
			ExistingSessionID: conflict.ExistingSessionID.String(),
		})
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrSessionNotAwaitingResponse),
		errors.Is(err, service.ErrPersistence):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeAndValidate reads a JSON body into dst and runs the struct validation tags.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errors.New(validationMessage(verrs))
		}
		return err
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("'%s': %s", fe.Field(), fieldMessage(fe)))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "should be a valid id"
	case "oneof":
		return "should have value in: " + fe.Param()
	case "lte", "max":
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		return "should be greater or equal than " + fe.Param()
	case "gt":
		return "should be greater than " + fe.Param()
	case "lt":
		return "should be less than " + fe.Param()
	}
	return "incorrect value passed"
}
