package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/mocks"
	"advisor-marketplace-backend/internal/repository"
	"advisor-marketplace-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type negotiationFixture struct {
	negotiations  *mocks.NegotiationRepo
	proposals     *mocks.ProposalRepo
	activity      *mocks.ActivityRepo
	directory     *mocks.DirectoryRepo
	notifications *mocks.NotificationService
	svc           service.NegotiationService

	ownerID     uuid.UUID
	advisorUser uuid.UUID
	project     *domain.Project
	advisor     *domain.Advisor
	proposal    *domain.Proposal
}

func newNegotiationFixture() *negotiationFixture {
	f := &negotiationFixture{
		negotiations:  new(mocks.NegotiationRepo),
		proposals:     new(mocks.ProposalRepo),
		activity:      new(mocks.ActivityRepo),
		directory:     new(mocks.DirectoryRepo),
		notifications: new(mocks.NotificationService),
		ownerID:       uuid.New(),
		advisorUser:   uuid.New(),
	}
	f.svc = service.NewNegotiationService(f.negotiations, f.proposals, f.activity, f.directory, f.notifications)

	f.project = &domain.Project{ID: uuid.New(), OwnerID: f.ownerID, Name: "Tower A"}
	f.advisor = &domain.Advisor{ID: uuid.New(), UserID: f.advisorUser, CompanyName: "Levi Engineering"}
	f.proposal = &domain.Proposal{
		ID:        uuid.New(),
		ProjectID: f.project.ID,
		AdvisorID: f.advisor.ID,
		Price:     120000,
		Status:    domain.ProposalStatusSubmitted,
		LineItems: []domain.LineItem{
			{ID: "design", Description: "Structural design", Price: 80000},
			{ID: "supervision", Description: "Site supervision", Price: 40000},
		},
	}
	return f
}

func TestNegotiationService_RequestNegotiation(t *testing.T) {
	ctx := context.Background()
	target := 100000.0

	t.Run("SnapshotsFirstVersionAndOpensSession", func(t *testing.T) {
		f := newNegotiationFixture()
		versionID := uuid.New()

		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.negotiations.On("Create", ctx, mock.MatchedBy(func(s *domain.NegotiationSession) bool {
			return s.Status == domain.NegotiationStatusAwaitingResponse &&
				s.BaseVersionID == nil &&
				s.InitiatorID == f.ownerID && *s.TargetPrice == target
		}), mock.MatchedBy(func(v *domain.ProposalVersion) bool {
			return v != nil && v.VersionNumber == 1 && v.Price == 120000 && len(v.LineItems) == 2
		})).Run(func(args mock.Arguments) {
			snapshot := args.Get(2).(*domain.ProposalVersion)
			snapshot.ID = versionID
			args.Get(1).(*domain.NegotiationSession).BaseVersionID = &snapshot.ID
		}).Return(nil).Once()
		f.proposals.On("UpdateStatus", ctx, f.proposal.ID, domain.ProposalStatusNegotiationRequested).Return(nil).Once()
		f.activity.On("Create", ctx, mock.MatchedBy(func(e *domain.ActivityLog) bool {
			return e.Action == domain.ActivityNegotiationRequested && e.Meta["base_version_id"] == versionID.String()
		})).Return(nil).Once()
		f.notifications.On("SendNegotiationRequest", ctx, mock.Anything).Return(nil).Once()

		session, err := f.svc.RequestNegotiation(ctx, f.ownerID, &service.NegotiationRequest{
			ProposalID:  f.proposal.ID,
			TargetPrice: &target,
			Message:     "Can you get closer to 100k?",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.NegotiationStatusAwaitingResponse, session.Status)
		f.proposals.AssertExpectations(t)
		f.negotiations.AssertExpectations(t)
		f.notifications.AssertExpectations(t)
	})

	t.Run("ActiveSessionConflictWithoutInsert", func(t *testing.T) {
		f := newNegotiationFixture()
		existing := &domain.NegotiationSession{ID: uuid.New(), Status: domain.NegotiationStatusAwaitingResponse}

		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(existing, nil).Once()

		_, err := f.svc.RequestNegotiation(ctx, f.ownerID, &service.NegotiationRequest{ProposalID: f.proposal.ID})

		var conflict *service.ActiveNegotiationError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, existing.ID, conflict.ExistingSessionID)
		f.negotiations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		f.proposals.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendNegotiationRequest", mock.Anything, mock.Anything)
	})

	t.Run("LostRaceReportsWinner", func(t *testing.T) {
		f := newNegotiationFixture()
		winner := &domain.NegotiationSession{ID: uuid.New()}
		base := &domain.ProposalVersion{ID: uuid.New(), ProposalID: f.proposal.ID, VersionNumber: 2}

		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(base, nil).Once()
		f.negotiations.On("Create", ctx, mock.MatchedBy(func(s *domain.NegotiationSession) bool {
			return s.BaseVersionID != nil && *s.BaseVersionID == base.ID
		}), (*domain.ProposalVersion)(nil)).Return(repository.ErrActiveNegotiationExists).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(winner, nil).Once()

		_, err := f.svc.RequestNegotiation(ctx, f.ownerID, &service.NegotiationRequest{ProposalID: f.proposal.ID})

		var conflict *service.ActiveNegotiationError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, winner.ID, conflict.ExistingSessionID)
		f.negotiations.AssertExpectations(t)
	})

	t.Run("LostRaceOnFirstRoundPassesSnapshotToCreate", func(t *testing.T) {
		f := newNegotiationFixture()
		winner := &domain.NegotiationSession{ID: uuid.New()}

		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.negotiations.On("Create", ctx, mock.Anything, mock.MatchedBy(func(v *domain.ProposalVersion) bool {
			return v != nil && v.VersionNumber == 1
		})).Return(repository.ErrActiveNegotiationExists).Once()
		f.negotiations.On("FindActiveByProposal", ctx, f.proposal.ID).Return(winner, nil).Once()

		_, err := f.svc.RequestNegotiation(ctx, f.ownerID, &service.NegotiationRequest{ProposalID: f.proposal.ID})

		var conflict *service.ActiveNegotiationError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, winner.ID, conflict.ExistingSessionID)
		f.proposals.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		f.activity.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("OnlyProjectOwner", func(t *testing.T) {
		f := newNegotiationFixture()
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()

		_, err := f.svc.RequestNegotiation(ctx, f.advisorUser, &service.NegotiationRequest{ProposalID: f.proposal.ID})
		assert.ErrorIs(t, err, service.ErrForbidden)
		f.negotiations.AssertNotCalled(t, "FindActiveByProposal", mock.Anything, mock.Anything)
	})

	t.Run("ClosedProposal", func(t *testing.T) {
		f := newNegotiationFixture()
		f.proposal.Status = domain.ProposalStatusAccepted
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()

		_, err := f.svc.RequestNegotiation(ctx, f.ownerID, &service.NegotiationRequest{ProposalID: f.proposal.ID})
		assert.ErrorIs(t, err, service.ErrInvalidTransition)
	})
}

func TestNegotiationService_Respond(t *testing.T) {
	ctx := context.Background()

	awaiting := func(f *negotiationFixture) *domain.NegotiationSession {
		return &domain.NegotiationSession{
			ID:         uuid.New(),
			ProjectID:  f.project.ID,
			ProposalID: f.proposal.ID,
			AdvisorID:  f.advisor.ID,
			Status:     domain.NegotiationStatusAwaitingResponse,
		}
	}

	t.Run("CreatesNextVersionWithSummedPrice", func(t *testing.T) {
		f := newNegotiationFixture()
		session := awaiting(f)
		current := &domain.ProposalVersion{
			ID:            uuid.New(),
			ProposalID:    f.proposal.ID,
			VersionNumber: 1,
			Price:         120000,
			TimelineDays:  90,
			LineItems:     f.proposal.LineItems,
		}

		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetAdvisor", ctx, f.advisor.ID).Return(f.advisor, nil).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(current, nil).Once()
		f.negotiations.On("RecordResponse", ctx, mock.MatchedBy(func(r *repository.NegotiationResponse) bool {
			v := r.Version
			return r.SessionID == session.ID &&
				v.VersionNumber == 2 &&
				v.Price == 107500.5 &&
				v.TimelineDays == 90 &&
				v.LineItems[0].Description == "Structural design" &&
				r.ConsultantMessage == "Reduced design fee"
		})).Return(nil).Once()
		f.activity.On("Create", ctx, mock.MatchedBy(func(e *domain.ActivityLog) bool {
			return e.Action == domain.ActivityNegotiationResponded
		})).Return(nil).Once()
		f.notifications.On("SendNegotiationResponse", ctx, mock.Anything, 120000.0, 107500.5).Return(nil).Once()

		res, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{
			SessionID: session.ID,
			LineItems: []domain.LineItem{
				{ID: "design", Price: 70000.25},
				{ID: "supervision", Description: "Site supervision", Price: 37500.25},
			},
			Message: "Reduced design fee",
		})
		require.NoError(t, err)
		assert.Equal(t, 120000.0, res.OldPrice)
		assert.Equal(t, 107500.5, res.NewPrice)
		assert.Equal(t, domain.NegotiationStatusAccepted, res.Session.Status)
		assert.NotNil(t, res.Session.ResolvedAt)
		f.negotiations.AssertExpectations(t)
		f.notifications.AssertExpectations(t)
	})

	t.Run("NotAwaitingResponse", func(t *testing.T) {
		for _, status := range []domain.NegotiationStatus{domain.NegotiationStatusOpen, domain.NegotiationStatusAccepted, domain.NegotiationStatusCancelled} {
			t.Run(string(status), func(t *testing.T) {
				f := newNegotiationFixture()
				session := awaiting(f)
				session.Status = status
				f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()

				_, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{
					SessionID: session.ID,
					LineItems: []domain.LineItem{{ID: "design", Price: 1}},
				})
				assert.ErrorIs(t, err, service.ErrSessionNotAwaitingResponse)
				f.negotiations.AssertNotCalled(t, "RecordResponse", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("OtherAdvisorForbidden", func(t *testing.T) {
		f := newNegotiationFixture()
		session := awaiting(f)
		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetAdvisor", ctx, f.advisor.ID).Return(f.advisor, nil).Once()

		_, err := f.svc.Respond(ctx, uuid.New(), &service.NegotiationReply{
			SessionID: session.ID,
			LineItems: []domain.LineItem{{ID: "design", Price: 1}},
		})
		assert.ErrorIs(t, err, service.ErrForbidden)
		f.proposals.AssertNotCalled(t, "LatestVersion", mock.Anything, mock.Anything)
	})

	t.Run("EmptyLineItems", func(t *testing.T) {
		f := newNegotiationFixture()
		_, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{SessionID: uuid.New()})
		assert.ErrorIs(t, err, service.ErrValidation)
		f.negotiations.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("BadLineItems", func(t *testing.T) {
		cases := map[string][]domain.LineItem{
			"MissingID": {{Price: 10}},
			"Duplicate": {{ID: "design", Price: 10}, {ID: "design", Price: 20}},
			"Negative":  {{ID: "design", Price: -1}},
		}
		for name, items := range cases {
			t.Run(name, func(t *testing.T) {
				f := newNegotiationFixture()
				session := awaiting(f)
				f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
				f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
				f.directory.On("GetAdvisor", ctx, f.advisor.ID).Return(f.advisor, nil).Once()
				f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()

				_, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{SessionID: session.ID, LineItems: items})
				assert.ErrorIs(t, err, service.ErrValidation)
				f.negotiations.AssertNotCalled(t, "RecordResponse", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("PersistenceFailureIsReported", func(t *testing.T) {
		f := newNegotiationFixture()
		session := awaiting(f)
		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetAdvisor", ctx, f.advisor.ID).Return(f.advisor, nil).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.negotiations.On("RecordResponse", ctx, mock.Anything).
			Return(errors.New("insert proposal version: pq: duplicate key value violates unique constraint")).Once()

		_, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{
			SessionID: session.ID,
			LineItems: []domain.LineItem{{ID: "design", Price: 75000}},
		})
		require.ErrorIs(t, err, service.ErrPersistence)
		assert.Contains(t, err.Error(), "duplicate key value violates unique constraint")
		f.activity.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "SendNegotiationResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ConcurrentResolutionIsNotAwaiting", func(t *testing.T) {
		f := newNegotiationFixture()
		session := awaiting(f)
		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.proposals.On("GetByID", ctx, f.proposal.ID).Return(f.proposal, nil).Once()
		f.directory.On("GetAdvisor", ctx, f.advisor.ID).Return(f.advisor, nil).Once()
		f.proposals.On("LatestVersion", ctx, f.proposal.ID).Return(nil, repository.ErrNotFound).Once()
		f.negotiations.On("RecordResponse", ctx, mock.MatchedBy(func(r *repository.NegotiationResponse) bool {
			return r.Version.VersionNumber == 1
		})).Return(repository.ErrStaleState).Once()

		_, err := f.svc.Respond(ctx, f.advisorUser, &service.NegotiationReply{
			SessionID: session.ID,
			LineItems: []domain.LineItem{{ID: "design", Price: 75000}},
		})
		assert.ErrorIs(t, err, service.ErrSessionNotAwaitingResponse)
		f.notifications.AssertNotCalled(t, "SendNegotiationResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNegotiationService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerCancels", func(t *testing.T) {
		f := newNegotiationFixture()
		session := &domain.NegotiationSession{ID: uuid.New(), ProjectID: f.project.ID, ProposalID: f.proposal.ID, Status: domain.NegotiationStatusAwaitingResponse}

		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()
		f.negotiations.On("Cancel", ctx, session.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()
		f.proposals.On("UpdateStatus", ctx, f.proposal.ID, domain.ProposalStatusSubmitted).Return(nil).Once()
		f.activity.On("Create", ctx, mock.MatchedBy(func(e *domain.ActivityLog) bool {
			return e.Action == domain.ActivityNegotiationCancelled && *e.ActorID == f.ownerID
		})).Return(nil).Once()
		f.notifications.On("SendNegotiationCancelled", ctx, session, "went with another firm").Return(nil).Once()

		got, err := f.svc.Cancel(ctx, f.ownerID, session.ID, "went with another firm")
		require.NoError(t, err)
		assert.Equal(t, domain.NegotiationStatusCancelled, got.Status)
		f.proposals.AssertExpectations(t)
		f.notifications.AssertExpectations(t)
	})

	t.Run("AlreadyResolved", func(t *testing.T) {
		f := newNegotiationFixture()
		session := &domain.NegotiationSession{ID: uuid.New(), ProjectID: f.project.ID, Status: domain.NegotiationStatusAccepted}

		f.negotiations.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		f.directory.On("GetProject", ctx, f.project.ID).Return(f.project, nil).Once()

		_, err := f.svc.Cancel(ctx, f.ownerID, session.ID, "")
		assert.ErrorIs(t, err, service.ErrInvalidTransition)
		f.negotiations.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNegotiationService_ExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newNegotiationFixture()

	stale := []domain.NegotiationSession{
		{ID: uuid.New(), ProjectID: f.project.ID, ProposalID: uuid.New(), Status: domain.NegotiationStatusCancelled},
		{ID: uuid.New(), ProjectID: f.project.ID, ProposalID: uuid.New(), Status: domain.NegotiationStatusCancelled},
	}

	var cutoff, now time.Time
	f.negotiations.On("CancelStale", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cutoff = args.Get(1).(time.Time)
		now = args.Get(2).(time.Time)
	}).Return(stale, nil).Once()
	f.proposals.On("UpdateStatus", ctx, mock.Anything, domain.ProposalStatusSubmitted).Return(nil).Twice()
	f.activity.On("Create", ctx, mock.Anything).Return(nil).Twice()
	f.notifications.On("SendNegotiationCancelled", ctx, mock.Anything, mock.Anything).Return(errors.New("bounced")).Once()
	f.notifications.On("SendNegotiationCancelled", ctx, mock.Anything, mock.Anything).Return(nil).Once()

	got, err := f.svc.ExpireStale(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 30*24*time.Hour, now.Sub(cutoff))
	f.proposals.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}
