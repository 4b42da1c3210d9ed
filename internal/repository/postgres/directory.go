package postgres

import (
	"context"
	"database/sql"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type directoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) repository.DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query, args, err := psql.Select("user_id", "name", "email", "role").
		From("profiles").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	p := &domain.Profile{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.UserID, &p.Name, &p.Email, &p.Role); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *directoryRepository) GetAdvisor(ctx context.Context, id uuid.UUID) (*domain.Advisor, error) {
	query, args, err := psql.Select("id", "user_id", "company_name", "email").
		From("advisors").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	a := &domain.Advisor{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.UserID, &a.CompanyName, &a.Email); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *directoryRepository) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query, args, err := psql.Select("id", "owner_id", "name").
		From("projects").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	p := &domain.Project{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.OwnerID, &p.Name); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *directoryRepository) GetRFP(ctx context.Context, id uuid.UUID) (*domain.RFP, error) {
	query, args, err := psql.Select("id", "project_id", "sent_by", "subject").
		From("rfps").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	f := &domain.RFP{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&f.ID, &f.ProjectID, &f.SentBy, &f.Subject); err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (r *directoryRepository) ListTeamMembers(ctx context.Context, advisorID uuid.UUID) ([]domain.TeamMember, error) {
	query, args, err := psql.Select("id", "advisor_id", "name", "email", "is_active", "notification_preferences").
		From("advisor_team_members").
		Where(sq.Eq{"advisor_id": advisorID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.AdvisorID, &m.Name, &m.Email, &m.IsActive, pq.Array(&m.NotificationPreferences)); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
