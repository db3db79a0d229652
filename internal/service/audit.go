package service

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// audit appends an ActionLog row inside tx. The true actor is always stored;
// the delegator goes in OnBehalfOf.
func audit(ctx context.Context, tx *gorm.DB, logs repository.ActionLogRepository, p Principal, action, entityType string, entityID uuid.UUID, detail map[string]interface{}) error {
	if logs == nil {
		return nil
	}
	return logs.Create(ctx, tx, &model.ActionLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    p.ActorID,
		OnBehalfOf: p.OnBehalfOf,
		Detail:     datatypes.JSONMap(detail),
	})
}
