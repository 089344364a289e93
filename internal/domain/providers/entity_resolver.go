package providers

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// EntityCodeResolver looks up stored entities by ERP code in one batch.
// Every stored record is returned, visible or not, keyed by code.
type EntityCodeResolver interface {
	ResolveCodes(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, codes []string) (map[string]*entities.Entity, error)
}
