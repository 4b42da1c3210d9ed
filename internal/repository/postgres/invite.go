package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var inviteColumns = []string{
	"id", "rfp_id", "advisor_id", "email", "status", "deadline_at", "reminder_stage",
	"last_notification_at", "delivered_at", "email_attempts", "email_last_error",
	"decline_reason", "opened_at", "submitted_at", "created_at", "updated_at",
}

type inviteRepository struct {
	db *sql.DB
}

func NewInviteRepository(db *sql.DB) repository.InviteRepository {
	return &inviteRepository{db: db}
}

func scanInvite(row rowScanner, inv *domain.RFPInvite, extra ...any) error {
	dest := []any{
		&inv.ID, &inv.RFPID, &inv.AdvisorID, &inv.Email, &inv.Status, &inv.DeadlineAt, &inv.ReminderStage,
		&inv.LastNotificationAt, &inv.DeliveredAt, &inv.EmailAttempts, &inv.EmailLastError,
		&inv.DeclineReason, &inv.OpenedAt, &inv.SubmittedAt, &inv.CreatedAt, &inv.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func statusArgs(statuses []domain.InviteStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *inviteRepository) Create(ctx context.Context, inv *domain.RFPInvite) error {
	if inv.Status == "" {
		inv.Status = domain.InviteStatusSent
	}
	query, args, err := psql.Insert("rfp_invites").
		Columns("rfp_id", "advisor_id", "email", "status", "deadline_at").
		Values(inv.RFPID, inv.AdvisorID, inv.Email, string(inv.Status), inv.DeadlineAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrInviteExists
	}
	return err
}

func (r *inviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RFPInvite, error) {
	query, args, err := psql.Select(inviteColumns...).From("rfp_invites").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	inv := &domain.RFPInvite{}
	if err := scanInvite(r.db.QueryRowContext(ctx, query, args...), inv); err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// UpdateStatus moves an invite to `to` only while it is still in a status that may reach it.
func (r *inviteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.InviteStatus, declineReason *string, now time.Time) error {
	sources := domain.InviteSourcesFor(to)
	if len(sources) == 0 {
		return repository.ErrStaleState
	}

	b := psql.Update("rfp_invites").
		Set("status", string(to)).
		Set("updated_at", now)
	switch to {
	case domain.InviteStatusOpened:
		b = b.Set("opened_at", sq.Expr("COALESCE(opened_at, ?)", now))
	case domain.InviteStatusSubmitted:
		b = b.Set("submitted_at", now)
	case domain.InviteStatusDeclined:
		b = b.Set("decline_reason", declineReason)
	}
	query, args, err := b.Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": statusArgs(sources)}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// ExpireOverdue flips every open invite whose deadline has passed in one statement.
// A second call with the same clock finds nothing left to expire.
func (r *inviteRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]domain.RFPInvite, error) {
	query, args, err := psql.Update("rfp_invites").
		Set("status", string(domain.InviteStatusExpired)).
		Set("last_notification_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"status": statusArgs(domain.ExpirableInviteStatuses())}).
		Where(sq.Lt{"deadline_at": now}).
		Suffix("RETURNING " + joinColumns(inviteColumns)).
		ToSql()
	if err != nil {
		return nil, err
	}

	logger.DatabaseCall("UPDATE", "rfp_invites", "op", "expire_overdue")
	expired, err := r.queryInvites(ctx, query, args...)
	logger.DatabaseResult("UPDATE", int64(len(expired)), err, "op", "expire_overdue")
	return expired, err
}

func (r *inviteRepository) ListReminderCandidates(ctx context.Context, rule domain.ReminderRule, now time.Time) ([]domain.ReminderCandidate, error) {
	cols := append(prefixed("i", inviteColumns), "p.id", "p.name", "a.company_name", "COALESCE(pr.name, '')")
	b := psql.Select(cols...).
		From("rfp_invites i").
		Join("rfps f ON f.id = i.rfp_id").
		Join("projects p ON p.id = f.project_id").
		Join("advisors a ON a.id = i.advisor_id").
		LeftJoin("profiles pr ON pr.user_id = p.owner_id").
		Where(sq.Eq{"i.status": statusArgs(rule.Statuses)}).
		Where(sq.Lt{"COALESCE(i.reminder_stage, 0)": rule.Stage}).
		Where(sq.Or{
			sq.Eq{"i.last_notification_at": nil},
			sq.Lt{"i.last_notification_at": now.Add(-rule.Cooldown)},
		})
	if rule.MinAge > 0 {
		b = b.Where(sq.LtOrEq{"i.created_at": now.Add(-rule.MinAge)})
	}
	if rule.HasDeadlineWindow() {
		b = b.Where("i.deadline_at BETWEEN ? AND ?", now.Add(rule.DeadlineFrom), now.Add(rule.DeadlineTo))
	}

	query, args, err := b.OrderBy("i.created_at").ToSql()
	if err != nil {
		return nil, err
	}

	logger.DatabaseCall("SELECT", "rfp_invites JOIN rfps JOIN projects JOIN advisors", "stage", rule.Stage)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "stage", rule.Stage)
		return nil, fmt.Errorf("list stage %d candidates: %w", rule.Stage, err)
	}
	defer rows.Close()

	var out []domain.ReminderCandidate
	for rows.Next() {
		var c domain.ReminderCandidate
		if err := scanInvite(rows, &c.RFPInvite, &c.ProjectID, &c.ProjectName, &c.AdvisorCompany, &c.EntrepreneurName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	logger.DatabaseResult("SELECT", int64(len(out)), rows.Err(), "stage", rule.Stage)
	return out, rows.Err()
}

// MarkReminderSent advances the reminder stage. It never lowers it: a row already at or past
// stage is left alone and false is returned.
func (r *inviteRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, stage int, now time.Time) (bool, error) {
	query, args, err := psql.Update("rfp_invites").
		Set("reminder_stage", stage).
		Set("last_notification_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Where(sq.Lt{"COALESCE(reminder_stage, 0)": stage}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUndelivered returns open invites whose invite email failed at least once and may be retried.
func (r *inviteRepository) ListUndelivered(ctx context.Context, maxAttempts int, now time.Time) ([]domain.RFPInvite, error) {
	query, args, err := psql.Select(inviteColumns...).
		From("rfp_invites").
		Where(sq.Eq{"delivered_at": nil}).
		Where(sq.Gt{"email_attempts": 0}).
		Where(sq.Lt{"email_attempts": maxAttempts}).
		Where(sq.Eq{"status": statusArgs(domain.ExpirableInviteStatuses())}).
		Where(sq.Or{sq.Eq{"deadline_at": nil}, sq.Gt{"deadline_at": now}}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryInvites(ctx, query, args...)
}

func (r *inviteRepository) RecordEmailAttempt(ctx context.Context, id uuid.UUID, sendErr error, now time.Time) error {
	b := psql.Update("rfp_invites").
		Set("email_attempts", sq.Expr("email_attempts + 1")).
		Set("updated_at", now)
	if sendErr == nil {
		b = b.Set("delivered_at", now).
			Set("email_last_error", nil).
			Set("last_notification_at", now)
	} else {
		b = b.Set("email_last_error", sendErr.Error())
	}
	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *inviteRepository) queryInvites(ctx context.Context, query string, args ...any) ([]domain.RFPInvite, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RFPInvite
	for rows.Next() {
		var inv domain.RFPInvite
		if err := scanInvite(rows, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
