package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

const integrationsTable = "erp_integrations"

// IntegrationAdapter implements IntegrationRepository
type IntegrationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewIntegrationAdapter creates a new integration adapter
func NewIntegrationAdapter(client *postgres.Client) repositories.IntegrationRepository {
	return &IntegrationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves an integration with its settings
func (a *IntegrationAdapter) GetByID(ctx context.Context, id string) (*entities.Integration, error) {
	query, args, err := a.db.Select(
		"id", "name", "type", "enabled", "settings", "created_at", "updated_at",
	).From(integrationsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	integration := &entities.Integration{}
	var settings []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&integration.ID,
		&integration.Name,
		&integration.Type,
		&integration.Enabled,
		&settings,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("integration with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get integration", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &integration.Settings); err != nil {
			return nil, apperrors.NewInternalError("failed to decode integration settings", err)
		}
	}

	return integration, nil
}

// Upsert inserts or updates an integration
func (a *IntegrationAdapter) Upsert(ctx context.Context, integration *entities.Integration) error {
	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	settings, err := json.Marshal(integration.Settings)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal integration settings", err)
	}

	query, args, err := a.db.Insert(integrationsTable).
		Rows(goqu.Record{
			"id":         integration.ID,
			"name":       integration.Name,
			"type":       integration.Type,
			"enabled":    integration.Enabled,
			"settings":   string(settings),
			"created_at": integration.CreatedAt,
			"updated_at": integration.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"name":       goqu.I("excluded.name"),
			"type":       goqu.I("excluded.type"),
			"enabled":    goqu.I("excluded.enabled"),
			"settings":   goqu.I("excluded.settings"),
			"updated_at": goqu.I("excluded.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert integration", err)
	}
	return nil
}
