package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/mocks"
	"advisor-marketplace-backend/internal/security"
	"advisor-marketplace-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret  = "test-jwt-secret"
	testCronSecret = "test-cron-secret"
)

type routerFixture struct {
	invites      *mocks.InviteService
	negotiations *mocks.NegotiationService
	tokens       security.TokenManager
	jobRuns      int
	router       http.Handler
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		invites:      new(mocks.InviteService),
		negotiations: new(mocks.NegotiationService),
		tokens:       security.NewTokenManager(testJWTSecret),
	}
	f.router = NewRouter(&RouterDeps{
		Invites:      f.invites,
		Negotiations: f.negotiations,
		Jobs: map[string]func(context.Context) (any, error){
			"expire-invites": func(ctx context.Context) (any, error) {
				f.jobRuns++
				return map[string]any{"expired_count": 0, "invite_ids": []string{}}, nil
			},
		},
		CronGate: security.NewCronGate(testCronSecret, "", time.Minute),
		Tokens:   f.tokens,
		Health:   func(context.Context) error { return nil },
	})
	return f
}

func (f *routerFixture) do(t *testing.T, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		token, err := f.tokens.GenerateAccessToken(userID, "user@example.com", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRouter_UserRoutesRequireBearer(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, "/functions/v1/request-negotiation", uuid.Nil, map[string]any{"proposal_id": uuid.NewString()})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "authorization token")

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/request-negotiation", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	f.negotiations.AssertNotCalled(t, "RequestNegotiation", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_RequestNegotiation(t *testing.T) {
	owner := uuid.New()
	proposalID := uuid.New()

	t.Run("ConflictCarriesExistingSession", func(t *testing.T) {
		f := newRouterFixture()
		existing := uuid.New()
		f.negotiations.On("RequestNegotiation", mock.Anything, owner, mock.MatchedBy(func(r *service.NegotiationRequest) bool {
			return r.ProposalID == proposalID
		})).Return(nil, &service.ActiveNegotiationError{ExistingSessionID: existing}).Once()

		w := f.do(t, "/functions/v1/request-negotiation", owner, map[string]any{
			"proposal_id": proposalID.String(),
			"message":     "Please revisit supervision fees",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"ACTIVE_NEGOTIATION_EXISTS","existing_session_id":"`+existing.String()+`"}`, w.Body.String())
	})

	t.Run("Created", func(t *testing.T) {
		f := newRouterFixture()
		target := 100000.0
		session := &domain.NegotiationSession{ID: uuid.New(), ProposalID: proposalID, Status: domain.NegotiationStatusAwaitingResponse}
		f.negotiations.On("RequestNegotiation", mock.Anything, owner, mock.MatchedBy(func(r *service.NegotiationRequest) bool {
			return *r.TargetPrice == target && len(r.LineItemAdjustments) == 1 && r.LineItemAdjustments[0].LineItemID == "design"
		})).Return(session, nil).Once()

		w := f.do(t, "/functions/v1/request-negotiation", owner, map[string]any{
			"proposal_id":  proposalID.String(),
			"target_price": target,
			"line_item_adjustments": []map[string]any{
				{"line_item_id": "design", "original_price": 80000, "target_price": 70000},
			},
		})

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, session.ID.String(), body["session"].(map[string]any)["id"])
	})

	t.Run("ValidationHappensBeforeService", func(t *testing.T) {
		f := newRouterFixture()

		w := f.do(t, "/functions/v1/request-negotiation", owner, map[string]any{
			"proposal_id":          "not-a-uuid",
			"target_reduction_pct": 150,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		msg := decodeBody(t, w)["error"].(string)
		assert.Contains(t, msg, "'proposal_id': should be a valid id")
		assert.Contains(t, msg, "'target_reduction_pct': should be less than 100")
		f.negotiations.AssertNotCalled(t, "RequestNegotiation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		f := newRouterFixture()
		w := f.do(t, "/functions/v1/request-negotiation", owner, map[string]any{
			"proposal_id": proposalID.String(),
			"status":      "accepted",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotOwnerIs400", func(t *testing.T) {
		f := newRouterFixture()
		f.negotiations.On("RequestNegotiation", mock.Anything, owner, mock.Anything).Return(nil, service.ErrForbidden).Once()

		w := f.do(t, "/functions/v1/request-negotiation", owner, map[string]any{"proposal_id": proposalID.String()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, service.ErrForbidden.Error(), decodeBody(t, w)["error"])
	})
}

func TestRouter_RespondNegotiation(t *testing.T) {
	advisor := uuid.New()
	sessionID := uuid.New()

	t.Run("NotAwaiting", func(t *testing.T) {
		f := newRouterFixture()
		f.negotiations.On("Respond", mock.Anything, advisor, mock.Anything).Return(nil, service.ErrSessionNotAwaitingResponse).Once()

		w := f.do(t, "/functions/v1/respond-negotiation", advisor, map[string]any{
			"session_id": sessionID.String(),
			"line_items": []map[string]any{{"id": "design", "price": 75000}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, service.ErrSessionNotAwaitingResponse.Error(), decodeBody(t, w)["error"])
	})

	t.Run("Success", func(t *testing.T) {
		f := newRouterFixture()
		f.negotiations.On("Respond", mock.Anything, advisor, mock.MatchedBy(func(r *service.NegotiationReply) bool {
			return r.SessionID == sessionID && len(r.LineItems) == 2 && r.LineItems[1].Price == 0
		})).Return(&service.ReplyResult{
			Session:  &domain.NegotiationSession{ID: sessionID, Status: domain.NegotiationStatusAccepted},
			Version:  &domain.ProposalVersion{ID: uuid.New(), VersionNumber: 2, Price: 75000},
			OldPrice: 120000,
			NewPrice: 75000,
		}, nil).Once()

		w := f.do(t, "/functions/v1/respond-negotiation", advisor, map[string]any{
			"session_id": sessionID.String(),
			"line_items": []map[string]any{
				{"id": "design", "price": 75000},
				{"id": "travel", "price": 0},
			},
			"message": "Dropped travel costs",
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 120000, body["old_price"])
		assert.EqualValues(t, 75000, body["new_price"])
	})

	t.Run("PersistenceFailureIs400WithMessage", func(t *testing.T) {
		f := newRouterFixture()
		dbErr := errors.New("insert proposal version: pq: duplicate key value violates unique constraint")
		f.negotiations.On("Respond", mock.Anything, advisor, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", service.ErrPersistence, dbErr)).Once()

		w := f.do(t, "/functions/v1/respond-negotiation", advisor, map[string]any{
			"session_id": sessionID.String(),
			"line_items": []map[string]any{{"id": "design", "price": 75000}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], dbErr.Error())
	})

	t.Run("PriceRequired", func(t *testing.T) {
		f := newRouterFixture()
		w := f.do(t, "/functions/v1/respond-negotiation", advisor, map[string]any{
			"session_id": sessionID.String(),
			"line_items": []map[string]any{{"id": "design"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.negotiations.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRouter_UpdateInviteStatus(t *testing.T) {
	advisor := uuid.New()
	inviteID := uuid.New()

	t.Run("InvalidTransition", func(t *testing.T) {
		f := newRouterFixture()
		f.invites.On("Transition", mock.Anything, advisor, inviteID, domain.InviteStatusExpired, (*string)(nil)).
			Return(nil, service.ErrInvalidTransition).Once()

		w := f.do(t, "/functions/v1/update-invite-status", advisor, map[string]any{
			"invite_id": inviteID.String(),
			"status":    "expired",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		f := newRouterFixture()
		w := f.do(t, "/functions/v1/update-invite-status", advisor, map[string]any{
			"invite_id": inviteID.String(),
			"status":    "archived",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "should have value in")
	})

	t.Run("UnexpectedErrorIs500", func(t *testing.T) {
		f := newRouterFixture()
		f.invites.On("Transition", mock.Anything, advisor, inviteID, domain.InviteStatusOpened, (*string)(nil)).
			Return(nil, errors.New("connection refused")).Once()

		w := f.do(t, "/functions/v1/update-invite-status", advisor, map[string]any{
			"invite_id": inviteID.String(),
			"status":    "opened",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "connection refused", decodeBody(t, w)["error"])
	})
}

func TestRouter_CronRoutes(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/expire-invites", nil)
	security.SignCronRequest(req.Header, "wrong-secret", time.Now())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, security.ReasonInvalidSecret, decodeBody(t, w)["reason"])
	assert.Equal(t, 0, f.jobRuns)

	req = httptest.NewRequest(http.MethodPost, "/functions/v1/expire-invites", nil)
	security.SignCronRequest(req.Header, testCronSecret, time.Now())
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired_count":0,"invite_ids":[]}`, w.Body.String())
	assert.Equal(t, 1, f.jobRuns)
}

func TestRouter_Healthz(t *testing.T) {
	f := newRouterFixture()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
