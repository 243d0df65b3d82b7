package postgres

import (
	"context"
	"encoding/json"

	"github.com/oksasatya/account-service/internal/domain/entity"
)

type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Insert(ctx context.Context, entry entity.AuditLog) error {
	md, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	var actor *string
	if entry.ActorID != "" {
		actor = &entry.ActorID
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_logs (entity, entity_id, action, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Entity, entry.EntityID, entry.Action, actor, md, entry.CreatedAt)
	return err
}
