package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"advisor-marketplace-backend/internal/domain"
	"advisor-marketplace-backend/internal/repository"
)

type activityLogRepository struct {
	db *sql.DB
}

func NewActivityLogRepository(db *sql.DB) repository.ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert("activity_log").
		Columns("actor_id", "project_id", "action", "entity_type", "entity_id", "meta").
		Values(entry.ActorID, entry.ProjectID, entry.Action, entry.EntityType, entry.EntityID, raw).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
}
