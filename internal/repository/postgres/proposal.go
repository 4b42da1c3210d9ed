package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var versionColumns = []string{
	"id", "proposal_id", "version_number", "price", "timeline_days", "scope_text", "terms",
	"line_items", "change_reason", "created_by", "created_at",
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type proposalRepository struct {
	db *sql.DB
}

func NewProposalRepository(db *sql.DB) repository.ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	query, args, err := psql.Select("id", "project_id", "advisor_id", "price", "timeline_days", "scope_text",
		"terms", "line_items", "status", "current_version", "submitted_at").
		From("proposals").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	p := &domain.Proposal{}
	var items []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.ProjectID, &p.AdvisorID, &p.Price,
		&p.TimelineDays, &p.ScopeText, &p.Terms, &items, &p.Status, &p.CurrentVersion, &p.SubmittedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := decodeLineItems(items, &p.LineItems); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *proposalRepository) ListVersions(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("proposal_versions").
		Where(sq.Eq{"proposal_id": proposalID}).
		OrderBy("version_number").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProposalVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// LatestVersion returns ErrNotFound when the proposal has never been versioned.
func (r *proposalRepository) LatestVersion(ctx context.Context, proposalID uuid.UUID) (*domain.ProposalVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("proposal_versions").
		Where(sq.Eq{"proposal_id": proposalID}).
		OrderBy("version_number DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (r *proposalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error {
	query, args, err := psql.Update("proposals").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
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
		return repository.ErrNotFound
	}
	return nil
}

func insertVersion(ctx context.Context, q queryRower, v *domain.ProposalVersion) error {
	items, err := marshalList(v.LineItems)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("proposal_versions").
		Columns("proposal_id", "version_number", "price", "timeline_days", "scope_text", "terms",
			"line_items", "change_reason", "created_by").
		Values(v.ProposalID, v.VersionNumber, v.Price, v.TimelineDays, v.ScopeText, v.Terms,
			items, v.ChangeReason, v.CreatedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return q.QueryRowContext(ctx, query, args...).Scan(&v.ID, &v.CreatedAt)
}

func scanVersion(row rowScanner) (*domain.ProposalVersion, error) {
	v := &domain.ProposalVersion{}
	var items []byte
	err := row.Scan(&v.ID, &v.ProposalID, &v.VersionNumber, &v.Price, &v.TimelineDays, &v.ScopeText,
		&v.Terms, &items, &v.ChangeReason, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeLineItems(items, &v.LineItems); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeLineItems(raw []byte, dst *[]domain.LineItem) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode line items: %w", err)
	}
	return nil
}
