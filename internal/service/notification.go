package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/metrics"
	"advisor-marketplace-backend/internal/repository"

	"github.com/google/uuid"
)

type notificationService struct {
	invites      repository.InviteRepository
	negotiations repository.NegotiationRepository
	proposals    repository.ProposalRepository
	activity     repository.ActivityLogRepository
	directory    repository.DirectoryRepository
	sender       EmailSender
	templates    *Templates
	appBaseURL   string
	now          func() time.Time
}

func NewNotificationService(
	invites repository.InviteRepository,
	negotiations repository.NegotiationRepository,
	proposals repository.ProposalRepository,
	activity repository.ActivityLogRepository,
	directory repository.DirectoryRepository,
	sender EmailSender,
	templates *Templates,
	appBaseURL string,
) NotificationService {
	return &notificationService{
		invites:      invites,
		negotiations: negotiations,
		proposals:    proposals,
		activity:     activity,
		directory:    directory,
		sender:       sender,
		templates:    templates,
		appBaseURL:   strings.TrimRight(appBaseURL, "/"),
		now:          time.Now,
	}
}

// inviteContext is everything an invite-related email needs besides the invite itself.
type inviteContext struct {
	rfp     *domain.RFP
	project *domain.Project
	advisor *domain.Advisor
	owner   *domain.Profile
}

func (s *notificationService) loadInviteContext(ctx context.Context, inv *domain.RFPInvite) (*inviteContext, error) {
	rfp, err := s.directory.GetRFP(ctx, inv.RFPID)
	if err != nil {
		return nil, fmt.Errorf("load rfp %s: %w", inv.RFPID, err)
	}
	project, err := s.directory.GetProject(ctx, rfp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", rfp.ProjectID, err)
	}
	advisor, err := s.directory.GetAdvisor(ctx, inv.AdvisorID)
	if err != nil {
		return nil, fmt.Errorf("load advisor %s: %w", inv.AdvisorID, err)
	}
	owner, err := s.directory.GetProfile(ctx, project.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load owner profile %s: %w", project.OwnerID, err)
	}
	return &inviteContext{rfp: rfp, project: project, advisor: advisor, owner: owner}, nil
}

type negotiationContext struct {
	project  *domain.Project
	advisor  *domain.Advisor
	owner    *domain.Profile
	proposal *domain.Proposal
}

func (s *notificationService) loadNegotiationContext(ctx context.Context, session *domain.NegotiationSession) (*negotiationContext, error) {
	project, err := s.directory.GetProject(ctx, session.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", session.ProjectID, err)
	}
	advisor, err := s.directory.GetAdvisor(ctx, session.AdvisorID)
	if err != nil {
		return nil, fmt.Errorf("load advisor %s: %w", session.AdvisorID, err)
	}
	owner, err := s.directory.GetProfile(ctx, project.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load owner profile %s: %w", project.OwnerID, err)
	}
	proposal, err := s.proposals.GetByID(ctx, session.ProposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal %s: %w", session.ProposalID, err)
	}
	return &negotiationContext{project: project, advisor: advisor, owner: owner, proposal: proposal}, nil
}

// advisorRecipients returns the advisor's address plus every active team member subscribed to category.
func (s *notificationService) advisorRecipients(ctx context.Context, advisorID uuid.UUID, primary, category string) []string {
	to := []string{primary}
	seen := map[string]bool{strings.ToLower(primary): true}

	members, err := s.directory.ListTeamMembers(ctx, advisorID)
	if err != nil {
		logger.Warn("Failed to load team members, sending to advisor only", "advisorID", advisorID, "error", err)
		return to
	}
	for _, m := range members {
		key := strings.ToLower(m.Email)
		if m.Email == "" || seen[key] || !m.SubscribedTo(category) {
			continue
		}
		seen[key] = true
		to = append(to, m.Email)
	}
	return to
}

func (s *notificationService) deliver(ctx context.Context, name string, data *EmailData, to []string) (string, error) {
	subject, body, err := s.templates.Render(name, data)
	if err != nil {
		return "", err
	}
	id, err := s.sender.Send(ctx, &Message{To: to, Subject: subject, HTML: body, Template: name})
	metrics.ObserveEmail(name, err)
	if err != nil {
		return "", fmt.Errorf("send %s email: %w", name, err)
	}
	return id, nil
}

// record writes one activity row. The email has already gone out, so a failure here is only logged.
func (s *notificationService) record(ctx context.Context, entry *domain.ActivityLog) {
	if err := s.activity.Create(ctx, entry); err != nil {
		logger.Error("Failed to write activity log", "action", entry.Action, "entityID", entry.EntityID, "error", err)
	}
}

func (s *notificationService) inviteLink(id uuid.UUID) string {
	return fmt.Sprintf("%s/advisor/rfp-invites/%s", s.appBaseURL, id)
}

func (s *notificationService) proposalLink(projectID, proposalID uuid.UUID) string {
	return fmt.Sprintf("%s/projects/%s/proposals/%s", s.appBaseURL, projectID, proposalID)
}

// SendRFPInvite sends the invitation email and records the attempt on the invite row,
// whether or not the provider accepted it.
func (s *notificationService) SendRFPInvite(ctx context.Context, inv *domain.RFPInvite) error {
	logger.EnterMethod("notificationService.SendRFPInvite", "inviteID", inv.ID)
	now := s.now()

	var providerID string
	ic, err := s.loadInviteContext(ctx, inv)
	if err == nil {
		data := &EmailData{
			AdvisorCompany:   ic.advisor.CompanyName,
			EntrepreneurName: ic.owner.Name,
			ProjectName:      ic.project.Name,
			RFPSubject:       ic.rfp.Subject,
			Deadline:         inv.DeadlineAt,
			Link:             s.inviteLink(inv.ID),
			LinkLabel:        "View the request",
		}
		to := s.advisorRecipients(ctx, inv.AdvisorID, inv.Email, domain.CategoryRFPInvites)
		providerID, err = s.deliver(ctx, TemplateRFPInvite, data, to)
	}

	if recErr := s.invites.RecordEmailAttempt(ctx, inv.ID, err, now); recErr != nil {
		logger.Error("Failed to record email attempt", "inviteID", inv.ID, "error", recErr)
	}

	entry := &domain.ActivityLog{
		Action:     domain.ActivityInviteSent,
		EntityType: domain.EntityRFPInvite,
		EntityID:   inv.ID,
		Meta:       map[string]any{"attempt": inv.EmailAttempts + 1},
	}
	if ic != nil {
		entry.ProjectID = &ic.project.ID
	}
	if err != nil {
		entry.Action = domain.ActivityInviteEmailFailed
		entry.Meta["error"] = err.Error()
	} else {
		entry.Meta["provider_message_id"] = providerID
	}
	s.record(ctx, entry)

	if err != nil {
		logger.ExitMethodWithError("notificationService.SendRFPInvite", err, "inviteID", inv.ID)
		return err
	}
	logger.ExitMethod("notificationService.SendRFPInvite", "inviteID", inv.ID)
	return nil
}

// SendReminder emails one reminder stage and, only after the provider accepted it,
// advances the invite's reminder stage.
func (s *notificationService) SendReminder(ctx context.Context, c *domain.ReminderCandidate, rule domain.ReminderRule) error {
	now := s.now()
	data := &EmailData{
		AdvisorCompany:   c.AdvisorCompany,
		EntrepreneurName: c.EntrepreneurName,
		ProjectName:      c.ProjectName,
		Deadline:         c.DeadlineAt,
		DaysLeft:         c.DaysToDeadline(now),
		Link:             s.inviteLink(c.ID),
		LinkLabel:        "Open the request",
	}
	to := s.advisorRecipients(ctx, c.AdvisorID, c.Email, domain.CategoryRFPReminders)

	providerID, err := s.deliver(ctx, rule.Template, data, to)
	if err != nil {
		return err
	}

	advanced, err := s.invites.MarkReminderSent(ctx, c.ID, rule.Stage, now)
	if err != nil {
		// The next run will send this stage again.
		logger.Error("Reminder sent but not recorded",
			"inviteID", c.ID, "stage", rule.Stage, "provider_message_id", providerID, "error", err)
		return fmt.Errorf("%w: stage %d: %w", ErrReminderNotRecorded, rule.Stage, err)
	}
	if !advanced {
		logger.Warn("Reminder stage was already advanced", "inviteID", c.ID, "stage", rule.Stage)
	}

	meta := map[string]any{
		"stage":               rule.Stage,
		"template":            rule.Template,
		"recipients":          len(to),
		"provider_message_id": providerID,
	}
	if data.DaysLeft != nil {
		meta["days_to_deadline"] = *data.DaysLeft
	}
	s.record(ctx, &domain.ActivityLog{
		ProjectID:  &c.ProjectID,
		Action:     domain.ActivityReminderSent,
		EntityType: domain.EntityRFPInvite,
		EntityID:   c.ID,
		Meta:       meta,
	})
	return nil
}

func (s *notificationService) SendNegotiationRequest(ctx context.Context, session *domain.NegotiationSession) error {
	nc, err := s.loadNegotiationContext(ctx, session)
	if err != nil {
		return err
	}

	data := &EmailData{
		AdvisorCompany:     nc.advisor.CompanyName,
		EntrepreneurName:   nc.owner.Name,
		ProjectName:        nc.project.Name,
		Message:            session.Message,
		OldPrice:           nc.proposal.Price,
		TargetPrice:        session.TargetPrice,
		TargetReductionPct: session.TargetReductionPct,
		Link:               s.proposalLink(session.ProjectID, session.ProposalID),
		LinkLabel:          "Respond to the request",
	}
	to := s.advisorRecipients(ctx, nc.advisor.ID, nc.advisor.Email, domain.CategoryNegotiations)
	if _, err := s.deliver(ctx, TemplateNegotiationRequest, data, to); err != nil {
		return err
	}

	s.stamp(ctx, session.ID, repository.PartyAdvisor)
	s.recordNotification(ctx, session, TemplateNegotiationRequest, len(to))
	return nil
}

// SendNegotiationResponse tells the entrepreneur the advisor answered, with the old and new totals.
func (s *notificationService) SendNegotiationResponse(ctx context.Context, session *domain.NegotiationSession, oldPrice, newPrice float64) error {
	nc, err := s.loadNegotiationContext(ctx, session)
	if err != nil {
		return err
	}

	data := &EmailData{
		AdvisorCompany:   nc.advisor.CompanyName,
		EntrepreneurName: nc.owner.Name,
		ProjectName:      nc.project.Name,
		Message:          session.ConsultantMessage,
		OldPrice:         oldPrice,
		NewPrice:         newPrice,
		PriceChangePct:   priceChangePct(oldPrice, newPrice),
		Link:             s.proposalLink(session.ProjectID, session.ProposalID),
		LinkLabel:        "Review the updated proposal",
	}
	if _, err := s.deliver(ctx, TemplateNegotiationResponse, data, []string{nc.owner.Email}); err != nil {
		return err
	}

	s.stamp(ctx, session.ID, repository.PartyEntrepreneur)
	s.recordNotification(ctx, session, TemplateNegotiationResponse, 1)
	return nil
}

func (s *notificationService) SendProposalSubmitted(ctx context.Context, inv *domain.RFPInvite) error {
	return s.notifyOwnerAboutInvite(ctx, inv, TemplateProposalSubmitted, "")
}

func (s *notificationService) SendInviteDeclined(ctx context.Context, inv *domain.RFPInvite) error {
	reason := ""
	if inv.DeclineReason != nil {
		reason = *inv.DeclineReason
	}
	return s.notifyOwnerAboutInvite(ctx, inv, TemplateInviteDeclined, reason)
}

func (s *notificationService) notifyOwnerAboutInvite(ctx context.Context, inv *domain.RFPInvite, name, message string) error {
	ic, err := s.loadInviteContext(ctx, inv)
	if err != nil {
		return err
	}

	data := &EmailData{
		AdvisorCompany:   ic.advisor.CompanyName,
		EntrepreneurName: ic.owner.Name,
		ProjectName:      ic.project.Name,
		Message:          message,
		Link:             fmt.Sprintf("%s/projects/%s", s.appBaseURL, ic.project.ID),
	}
	if _, err := s.deliver(ctx, name, data, []string{ic.owner.Email}); err != nil {
		return err
	}

	s.record(ctx, &domain.ActivityLog{
		ProjectID:  &ic.project.ID,
		Action:     domain.ActivityNotificationSent,
		EntityType: domain.EntityRFPInvite,
		EntityID:   inv.ID,
		Meta:       map[string]any{"template": name, "recipients": 1},
	})
	return nil
}

// SendNegotiationCancelled emails both parties separately and stamps each one that was reached.
func (s *notificationService) SendNegotiationCancelled(ctx context.Context, session *domain.NegotiationSession, reason string) error {
	nc, err := s.loadNegotiationContext(ctx, session)
	if err != nil {
		return err
	}

	base := EmailData{
		AdvisorCompany: nc.advisor.CompanyName,
		ProjectName:    nc.project.Name,
		Message:        reason,
		Link:           s.proposalLink(session.ProjectID, session.ProposalID),
	}

	var errs []error
	sent := 0

	ownerData := base
	ownerData.RecipientName = nc.owner.Name
	if _, err := s.deliver(ctx, TemplateNegotiationCancelled, &ownerData, []string{nc.owner.Email}); err != nil {
		errs = append(errs, err)
	} else {
		sent++
		s.stamp(ctx, session.ID, repository.PartyEntrepreneur)
	}

	advisorData := base
	advisorData.RecipientName = nc.advisor.CompanyName
	to := s.advisorRecipients(ctx, nc.advisor.ID, nc.advisor.Email, domain.CategoryNegotiations)
	if _, err := s.deliver(ctx, TemplateNegotiationCancelled, &advisorData, to); err != nil {
		errs = append(errs, err)
	} else {
		sent += len(to)
		s.stamp(ctx, session.ID, repository.PartyAdvisor)
	}

	if sent > 0 {
		s.recordNotification(ctx, session, TemplateNegotiationCancelled, sent)
	}
	return errors.Join(errs...)
}

func (s *notificationService) stamp(ctx context.Context, sessionID uuid.UUID, party string) {
	if err := s.negotiations.StampNotified(ctx, sessionID, party, s.now()); err != nil {
		logger.Error("Failed to stamp notification time", "sessionID", sessionID, "party", party, "error", err)
	}
}

func (s *notificationService) recordNotification(ctx context.Context, session *domain.NegotiationSession, name string, recipients int) {
	s.record(ctx, &domain.ActivityLog{
		ProjectID:  &session.ProjectID,
		Action:     domain.ActivityNotificationSent,
		EntityType: domain.EntityNegotiation,
		EntityID:   session.ID,
		Meta:       map[string]any{"template": name, "recipients": recipients},
	})
}

func priceChangePct(oldPrice, newPrice float64) *float64 {
	if oldPrice == 0 {
		return nil
	}
	pct := math.Round((newPrice-oldPrice)/oldPrice*1000) / 10
	return &pct
}
