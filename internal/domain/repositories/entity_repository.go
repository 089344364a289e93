package repositories

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// EntityRepository defines read access to locally stored ERP entities
type EntityRepository interface {
	// FindByCodes retrieves every entity of a type whose code is in codes,
	// in a single query
	FindByCodes(ctx context.Context, integrationID string, entityType entities.EntityType, codes []string, filter EntityFilter) ([]*entities.Entity, error)

	// FindByID retrieves one entity by its local ID
	FindByID(ctx context.Context, integrationID, id string) (*entities.Entity, error)
}

// EntityWriter stores entities synchronized from an ERP
type EntityWriter interface {
	// Upsert inserts the entity or updates the record with the same
	// integration, type and code
	Upsert(ctx context.Context, entity *entities.Entity) error
}

// EntityFilter narrows FindByCodes
type EntityFilter struct {
	ActiveOnly bool
}

// ExternalDoctorRepository looks up doctors known only through ERP
// responses
type ExternalDoctorRepository interface {
	FindExternalDoctors(ctx context.Context, integrationID string, codes []string) ([]*entities.ExternalDoctor, error)
}

// IntegrationRepository defines read access to configured integrations
type IntegrationRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Integration, error)
	Upsert(ctx context.Context, integration *entities.Integration) error
}
