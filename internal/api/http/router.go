package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"advisor-marketplace-backend/internal/metrics"
	"advisor-marketplace-backend/internal/security"
	"advisor-marketplace-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const functionsPrefix = "/functions/v1"

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	Invites      service.InviteService
	Negotiations service.NegotiationService
	Jobs         map[string]func(context.Context) (any, error)
	CronGate     *security.CronGate
	Tokens       security.TokenManager
	Health       func(context.Context) error
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func NewRouter(deps *RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(RecoveryMiddleware, LoggingMiddleware, NewAuthMiddleware(deps.Tokens).Handler)

	r.HandleFunc("/healthz", healthHandler(deps.Health)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	fn := r.PathPrefix(functionsPrefix).Subrouter()

	// Scheduled jobs
	for name, job := range deps.Jobs {
		fn.Handle("/"+name, deps.CronGate.Wrap(name, job)).Methods(http.MethodPost)
	}

	// User actions
	v := NewValidator()
	invites := NewInviteHandler(deps.Invites, v)
	negotiations := NewNegotiationHandler(deps.Negotiations, v)
	fn.HandleFunc("/dispatch-rfp", invites.DispatchRFP).Methods(http.MethodPost)
	fn.HandleFunc("/update-invite-status", invites.UpdateStatus).Methods(http.MethodPost)
	fn.HandleFunc("/request-negotiation", negotiations.RequestNegotiation).Methods(http.MethodPost)
	fn.HandleFunc("/respond-negotiation", negotiations.RespondNegotiation).Methods(http.MethodPost)
	fn.HandleFunc("/cancel-negotiation", negotiations.CancelNegotiation).Methods(http.MethodPost)

	return r
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
