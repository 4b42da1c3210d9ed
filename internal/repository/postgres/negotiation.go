package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var negotiationColumns = []string{
	"id", "project_id", "proposal_id", "advisor_id", "initiator_id", "status", "target_price",
	"target_reduction_pct", "message", "file_refs", "line_item_adjustments", "milestone_adjustments",
	"base_version_id", "response_version_id", "consultant_message", "created_at", "resolved_at",
}

type negotiationRepository struct {
	db *sql.DB
}

func NewNegotiationRepository(db *sql.DB) repository.NegotiationRepository {
	return &negotiationRepository{db: db}
}

func scanNegotiation(row rowScanner) (*domain.NegotiationSession, error) {
	s := &domain.NegotiationSession{}
	var lineItems, milestones []byte
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.ProposalID, &s.AdvisorID, &s.InitiatorID, &s.Status, &s.TargetPrice,
		&s.TargetReductionPct, &s.Message, pq.Array(&s.FileRefs), &lineItems, &milestones,
		&s.BaseVersionID, &s.ResponseVersionID, &s.ConsultantMessage, &s.CreatedAt, &s.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &s.LineItemAdjustments); err != nil {
			return nil, fmt.Errorf("decode line item adjustments: %w", err)
		}
	}
	if len(milestones) > 0 {
		if err := json.Unmarshal(milestones, &s.MilestoneAdjustments); err != nil {
			return nil, fmt.Errorf("decode milestone adjustments: %w", err)
		}
	}
	return s, nil
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// Create inserts a new session, storing snapshot first when one is given. The partial unique
// index on active sessions turns a lost race into ErrActiveNegotiationExists, and the rollback
// drops the snapshot with it.
func (r *negotiationRepository) Create(ctx context.Context, s *domain.NegotiationSession, snapshot *domain.ProposalVersion) error {
	lineItems, err := marshalList(s.LineItemAdjustments)
	if err != nil {
		return err
	}
	milestones, err := marshalList(s.MilestoneAdjustments)
	if err != nil {
		return err
	}
	fileRefs := s.FileRefs
	if fileRefs == nil {
		fileRefs = []string{}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if snapshot != nil {
			if err := insertVersion(ctx, tx, snapshot); err != nil {
				// A concurrent request took the same version number on its way to opening a session.
				if isUniqueViolation(err) {
					return repository.ErrActiveNegotiationExists
				}
				return fmt.Errorf("insert proposal version: %w", err)
			}
			s.BaseVersionID = &snapshot.ID
		}

		query, args, err := psql.Insert("negotiation_sessions").
			Columns("project_id", "proposal_id", "advisor_id", "initiator_id", "status", "target_price",
				"target_reduction_pct", "message", "file_refs", "line_item_adjustments",
				"milestone_adjustments", "base_version_id").
			Values(s.ProjectID, s.ProposalID, s.AdvisorID, s.InitiatorID, string(s.Status), s.TargetPrice,
				s.TargetReductionPct, s.Message, pq.Array(fileRefs), lineItems, milestones, s.BaseVersionID).
			Suffix("RETURNING id, created_at").
			ToSql()
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.CreatedAt)
		if isUniqueViolation(err) {
			return repository.ErrActiveNegotiationExists
		}
		return err
	})
}

func (r *negotiationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.NegotiationSession, error) {
	query, args, err := psql.Select(negotiationColumns...).
		From("negotiation_sessions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanNegotiation(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *negotiationRepository) FindActiveByProposal(ctx context.Context, proposalID uuid.UUID) (*domain.NegotiationSession, error) {
	query, args, err := psql.Select(negotiationColumns...).
		From("negotiation_sessions").
		Where(sq.Eq{"proposal_id": proposalID}).
		Where(sq.Eq{"status": activeStatusArgs()}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanNegotiation(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *negotiationRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) error {
	query, args, err := psql.Update("negotiation_sessions").
		Set("status", string(domain.NegotiationStatusCancelled)).
		Set("resolved_at", now).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": activeStatusArgs()}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// CancelStale cancels every active session created before createdBefore and returns them.
func (r *negotiationRepository) CancelStale(ctx context.Context, createdBefore, now time.Time) ([]domain.NegotiationSession, error) {
	query, args, err := psql.Update("negotiation_sessions").
		Set("status", string(domain.NegotiationStatusCancelled)).
		Set("resolved_at", now).
		Where(sq.Eq{"status": activeStatusArgs()}).
		Where(sq.Lt{"created_at": createdBefore}).
		Suffix("RETURNING " + joinColumns(negotiationColumns)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.NegotiationSession
	for rows.Next() {
		s, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// RecordResponse stores the advisor's new proposal version, moves the proposal to resubmitted
// and resolves the session in one transaction.
func (r *negotiationRepository) RecordResponse(ctx context.Context, resp *repository.NegotiationResponse) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertVersion(ctx, tx, resp.Version); err != nil {
			return fmt.Errorf("insert proposal version: %w", err)
		}

		v := resp.Version
		items, err := marshalList(v.LineItems)
		if err != nil {
			return err
		}
		query, args, err := psql.Update("proposals").
			Set("price", v.Price).
			Set("line_items", items).
			Set("status", string(domain.ProposalStatusResubmitted)).
			Set("current_version", v.VersionNumber).
			Where(sq.Eq{"id": v.ProposalID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update proposal: %w", err)
		}

		query, args, err = psql.Update("negotiation_sessions").
			Set("status", string(domain.NegotiationStatusAccepted)).
			Set("response_version_id", v.ID).
			Set("consultant_message", resp.ConsultantMessage).
			Set("resolved_at", resp.ResolvedAt).
			Where(sq.Eq{"id": resp.SessionID}).
			Where(sq.Eq{"status": string(domain.NegotiationStatusAwaitingResponse)}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("resolve session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrStaleState
		}
		return nil
	})
}

func (r *negotiationRepository) StampNotified(ctx context.Context, id uuid.UUID, party string, now time.Time) error {
	var column string
	switch party {
	case repository.PartyAdvisor:
		column = "advisor_notified_at"
	case repository.PartyEntrepreneur:
		column = "entrepreneur_notified_at"
	default:
		return fmt.Errorf("unknown negotiation party %q", party)
	}
	query, args, err := psql.Update("negotiation_sessions").
		Set(column, now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func activeStatusArgs() []string {
	active := domain.ActiveNegotiationStatuses()
	out := make([]string, len(active))
	for i, s := range active {
		out[i] = string(s)
	}
	return out
}
