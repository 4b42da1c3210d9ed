// Package mocks holds testify mocks shared by the service, jobs and handler tests.
package mocks

import (
	"context"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type InviteRepo struct {
	mock.Mock
}

func (m *InviteRepo) Create(ctx context.Context, inv *domain.RFPInvite) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *InviteRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RFPInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RFPInvite), args.Error(1)
}

func (m *InviteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.InviteStatus, declineReason *string, now time.Time) error {
	args := m.Called(ctx, id, to, declineReason, now)
	return args.Error(0)
}

func (m *InviteRepo) ExpireOverdue(ctx context.Context, now time.Time) ([]domain.RFPInvite, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RFPInvite), args.Error(1)
}

func (m *InviteRepo) ListReminderCandidates(ctx context.Context, rule domain.ReminderRule, now time.Time) ([]domain.ReminderCandidate, error) {
	args := m.Called(ctx, rule, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReminderCandidate), args.Error(1)
}

func (m *InviteRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, stage int, now time.Time) (bool, error) {
	args := m.Called(ctx, id, stage, now)
	return args.Bool(0), args.Error(1)
}

func (m *InviteRepo) ListUndelivered(ctx context.Context, maxAttempts int, now time.Time) ([]domain.RFPInvite, error) {
	args := m.Called(ctx, maxAttempts, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RFPInvite), args.Error(1)
}

func (m *InviteRepo) RecordEmailAttempt(ctx context.Context, id uuid.UUID, sendErr error, now time.Time) error {
	args := m.Called(ctx, id, sendErr, now)
	return args.Error(0)
}

type NegotiationRepo struct {
	mock.Mock
}

func (m *NegotiationRepo) Create(ctx context.Context, session *domain.NegotiationSession, snapshot *domain.ProposalVersion) error {
	args := m.Called(ctx, session, snapshot)
	return args.Error(0)
}

func (m *NegotiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.NegotiationSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NegotiationSession), args.Error(1)
}

func (m *NegotiationRepo) FindActiveByProposal(ctx context.Context, proposalID uuid.UUID) (*domain.NegotiationSession, error) {
	args := m.Called(ctx, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NegotiationSession), args.Error(1)
}

func (m *NegotiationRepo) Cancel(ctx context.Context, id uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *NegotiationRepo) CancelStale(ctx context.Context, createdBefore, now time.Time) ([]domain.NegotiationSession, error) {
	args := m.Called(ctx, createdBefore, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NegotiationSession), args.Error(1)
}

func (m *NegotiationRepo) RecordResponse(ctx context.Context, resp *repository.NegotiationResponse) error {
	args := m.Called(ctx, resp)
	return args.Error(0)
}

func (m *NegotiationRepo) StampNotified(ctx context.Context, id uuid.UUID, party string, now time.Time) error {
	args := m.Called(ctx, id, party, now)
	return args.Error(0)
}

type ProposalRepo struct {
	mock.Mock
}

func (m *ProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}

func (m *ProposalRepo) ListVersions(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalVersion, error) {
	args := m.Called(ctx, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProposalVersion), args.Error(1)
}

func (m *ProposalRepo) LatestVersion(ctx context.Context, proposalID uuid.UUID) (*domain.ProposalVersion, error) {
	args := m.Called(ctx, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProposalVersion), args.Error(1)
}

func (m *ProposalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type ActivityRepo struct {
	mock.Mock
}

func (m *ActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type DirectoryRepo struct {
	mock.Mock
}

func (m *DirectoryRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *DirectoryRepo) GetAdvisor(ctx context.Context, id uuid.UUID) (*domain.Advisor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Advisor), args.Error(1)
}

func (m *DirectoryRepo) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *DirectoryRepo) GetRFP(ctx context.Context, id uuid.UUID) (*domain.RFP, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RFP), args.Error(1)
}

func (m *DirectoryRepo) ListTeamMembers(ctx context.Context, advisorID uuid.UUID) ([]domain.TeamMember, error) {
	args := m.Called(ctx, advisorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TeamMember), args.Error(1)
}
