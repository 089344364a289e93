package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

const (
	entitiesTable        = "erp_entities"
	externalDoctorsTable = "erp_external_doctors"
)

var entityColumns = []any{
	"id", "integration_id", "entity_type", "code", "name", "friendly_name",
	"active_erp", "can_view", "can_schedule", "can_confirm_active",
	"can_confirm_passive", "can_cancel", "can_reschedule",
	"params", "references", "created_at", "updated_at",
}

// EntityAdapter implements EntityRepository, EntityWriter and
// ExternalDoctorRepository
type EntityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEntityAdapter creates a new entity adapter
func NewEntityAdapter(client *postgres.Client) *EntityAdapter {
	return &EntityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var (
	_ repositories.EntityRepository         = (*EntityAdapter)(nil)
	_ repositories.EntityWriter             = (*EntityAdapter)(nil)
	_ repositories.ExternalDoctorRepository = (*EntityAdapter)(nil)
)

// FindByCodes retrieves the entities of a type whose code is in codes
func (a *EntityAdapter) FindByCodes(ctx context.Context, integrationID string, entityType entities.EntityType, codes []string, filter repositories.EntityFilter) ([]*entities.Entity, error) {
	if len(codes) == 0 {
		return []*entities.Entity{}, nil
	}

	where := goqu.Ex{
		"integration_id": integrationID,
		"entity_type":    string(entityType),
		"code":           codes,
	}
	if filter.ActiveOnly {
		where["active_erp"] = true
	}

	query, args, err := a.db.Select(entityColumns...).
		From(entitiesTable).
		Where(where).
		Order(goqu.I("code").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find entities by code", err)
	}
	defer rows.Close()

	result := make([]*entities.Entity, 0, len(codes))
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate entities", err)
	}

	return result, nil
}

// FindByID retrieves one entity by its local ID
func (a *EntityAdapter) FindByID(ctx context.Context, integrationID, id string) (*entities.Entity, error) {
	query, args, err := a.db.Select(entityColumns...).
		From(entitiesTable).
		Where(goqu.Ex{"integration_id": integrationID, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entity, err := scanEntity(a.client.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", id))
		}
		return nil, err
	}
	return entity, nil
}

// Upsert inserts or updates an entity keyed by integration, type and code
func (a *EntityAdapter) Upsert(ctx context.Context, entity *entities.Entity) error {
	now := time.Now()
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	params, err := json.Marshal(entity.Params)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal entity params", err)
	}
	references, err := json.Marshal(entity.References)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal entity references", err)
	}

	record := goqu.Record{
		"id":                  entity.ID,
		"integration_id":      entity.IntegrationID,
		"entity_type":         string(entity.EntityType),
		"code":                entity.Code,
		"name":                entity.Name,
		"friendly_name":       sql.NullString{String: entity.FriendlyName, Valid: entity.FriendlyName != ""},
		"active_erp":          entity.ActiveErp,
		"can_view":            entity.CanView,
		"can_schedule":        entity.CanSchedule,
		"can_confirm_active":  entity.CanConfirmActive,
		"can_confirm_passive": entity.CanConfirmPassive,
		"can_cancel":          entity.CanCancel,
		"can_reschedule":      entity.CanReschedule,
		"params":              string(params),
		"references":          string(references),
		"created_at":          entity.CreatedAt,
		"updated_at":          entity.UpdatedAt,
	}

	query, args, err := a.db.Insert(entitiesTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("integration_id, entity_type, code", goqu.Record{
			"name":                goqu.I("excluded.name"),
			"friendly_name":       goqu.I("excluded.friendly_name"),
			"active_erp":          goqu.I("excluded.active_erp"),
			"can_view":            goqu.I("excluded.can_view"),
			"can_schedule":        goqu.I("excluded.can_schedule"),
			"can_confirm_active":  goqu.I("excluded.can_confirm_active"),
			"can_confirm_passive": goqu.I("excluded.can_confirm_passive"),
			"can_cancel":          goqu.I("excluded.can_cancel"),
			"can_reschedule":      goqu.I("excluded.can_reschedule"),
			"params":              goqu.I("excluded.params"),
			"references":          goqu.I("excluded.references"),
			"updated_at":          goqu.I("excluded.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert entity", err)
	}
	return nil
}

// FindExternalDoctors retrieves doctors registered only on the ERP side
func (a *EntityAdapter) FindExternalDoctors(ctx context.Context, integrationID string, codes []string) ([]*entities.ExternalDoctor, error) {
	if len(codes) == 0 {
		return []*entities.ExternalDoctor{}, nil
	}

	query, args, err := a.db.Select("integration_id", "code", "name", "virtual").
		From(externalDoctorsTable).
		Where(goqu.Ex{"integration_id": integrationID, "code": codes}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find external doctors", err)
	}
	defer rows.Close()

	var doctors []*entities.ExternalDoctor
	for rows.Next() {
		doctor := &entities.ExternalDoctor{}
		if err := rows.Scan(&doctor.IntegrationID, &doctor.Code, &doctor.Name, &doctor.Virtual); err != nil {
			return nil, apperrors.NewInternalError("failed to scan external doctor", err)
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate external doctors", err)
	}
	return doctors, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entities.Entity, error) {
	entity := &entities.Entity{}
	var entityType string
	var friendlyName sql.NullString
	var params, references []byte

	err := row.Scan(
		&entity.ID,
		&entity.IntegrationID,
		&entityType,
		&entity.Code,
		&entity.Name,
		&friendlyName,
		&entity.ActiveErp,
		&entity.CanView,
		&entity.CanSchedule,
		&entity.CanConfirmActive,
		&entity.CanConfirmPassive,
		&entity.CanCancel,
		&entity.CanReschedule,
		&params,
		&references,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan entity", err)
	}

	entity.EntityType = entities.EntityType(entityType)
	entity.FriendlyName = friendlyName.String

	if len(params) > 0 {
		if err := json.Unmarshal(params, &entity.Params); err != nil {
			return nil, apperrors.NewInternalError("failed to decode entity params", err)
		}
	}
	if len(references) > 0 {
		if err := json.Unmarshal(references, &entity.References); err != nil {
			return nil, apperrors.NewInternalError("failed to decode entity references", err)
		}
	}

	return entity, nil
}
