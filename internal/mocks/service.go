package mocks

import (
	"context"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type EmailSender struct {
	mock.Mock
}

func (m *EmailSender) Send(ctx context.Context, msg *service.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type NotificationService struct {
	mock.Mock
}

func (m *NotificationService) SendRFPInvite(ctx context.Context, inv *domain.RFPInvite) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *NotificationService) SendReminder(ctx context.Context, c *domain.ReminderCandidate, rule domain.ReminderRule) error {
	return m.Called(ctx, c, rule).Error(0)
}

func (m *NotificationService) SendNegotiationRequest(ctx context.Context, session *domain.NegotiationSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *NotificationService) SendNegotiationResponse(ctx context.Context, session *domain.NegotiationSession, oldPrice, newPrice float64) error {
	return m.Called(ctx, session, oldPrice, newPrice).Error(0)
}

func (m *NotificationService) SendProposalSubmitted(ctx context.Context, inv *domain.RFPInvite) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *NotificationService) SendInviteDeclined(ctx context.Context, inv *domain.RFPInvite) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *NotificationService) SendNegotiationCancelled(ctx context.Context, session *domain.NegotiationSession, reason string) error {
	return m.Called(ctx, session, reason).Error(0)
}

type InviteService struct {
	mock.Mock
}

func (m *InviteService) DispatchRFP(ctx context.Context, ownerID, rfpID uuid.UUID, advisorIDs []uuid.UUID, deadline *time.Time) (*service.DispatchResult, error) {
	args := m.Called(ctx, ownerID, rfpID, advisorIDs, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DispatchResult), args.Error(1)
}

func (m *InviteService) Transition(ctx context.Context, callerID, inviteID uuid.UUID, to domain.InviteStatus, reason *string) (*domain.RFPInvite, error) {
	args := m.Called(ctx, callerID, inviteID, to, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RFPInvite), args.Error(1)
}

type NegotiationService struct {
	mock.Mock
}

func (m *NegotiationService) RequestNegotiation(ctx context.Context, callerID uuid.UUID, req *service.NegotiationRequest) (*domain.NegotiationSession, error) {
	args := m.Called(ctx, callerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NegotiationSession), args.Error(1)
}

func (m *NegotiationService) Respond(ctx context.Context, callerID uuid.UUID, reply *service.NegotiationReply) (*service.ReplyResult, error) {
	args := m.Called(ctx, callerID, reply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReplyResult), args.Error(1)
}

func (m *NegotiationService) Cancel(ctx context.Context, callerID, sessionID uuid.UUID, reason string) (*domain.NegotiationSession, error) {
	args := m.Called(ctx, callerID, sessionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NegotiationSession), args.Error(1)
}

func (m *NegotiationService) ExpireStale(ctx context.Context, staleAfter time.Duration) ([]domain.NegotiationSession, error) {
	args := m.Called(ctx, staleAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NegotiationSession), args.Error(1)
}
