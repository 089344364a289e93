package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

const credentialsTable = "erp_integration_credentials"

// CredentialsAdapter loads per-integration ERP credentials from Postgres,
// falling back to a static provider when none are stored
type CredentialsAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	fallback providers.CredentialsProvider
}

// NewCredentialsAdapter creates a credentials adapter. fallback may be nil.
func NewCredentialsAdapter(client *postgres.Client, fallback providers.CredentialsProvider) providers.CredentialsProvider {
	return &CredentialsAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		fallback: fallback,
	}
}

// GetConfig returns the ERP endpoint and token of an integration
func (a *CredentialsAdapter) GetConfig(ctx context.Context, integration *entities.Integration) (*entities.Credentials, error) {
	query, args, err := a.db.Select("api_url", "api_token").
		From(credentialsTable).
		Where(goqu.Ex{"integration_id": integration.ID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	creds := &entities.Credentials{}
	var token sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&creds.APIURL, &token)
	if errors.Is(err, sql.ErrNoRows) {
		if a.fallback != nil {
			return a.fallback.GetConfig(ctx, integration)
		}
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("credentials for integration %s not found", integration.ID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get integration credentials", err)
	}

	creds.APIToken = token.String
	return creds, nil
}

// StaticCredentialsProvider serves the same credentials to every
// integration. Used by single-ERP deployments configured from env.
type StaticCredentialsProvider struct {
	credentials entities.Credentials
}

// NewStaticCredentialsProvider creates a static credentials provider
func NewStaticCredentialsProvider(apiURL, apiToken string) *StaticCredentialsProvider {
	return &StaticCredentialsProvider{
		credentials: entities.Credentials{APIURL: apiURL, APIToken: apiToken},
	}
}

// GetConfig returns a copy of the configured credentials
func (p *StaticCredentialsProvider) GetConfig(ctx context.Context, integration *entities.Integration) (*entities.Credentials, error) {
	if p.credentials.APIURL == "" {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no erp credentials configured for integration %s", integration.ID))
	}
	creds := p.credentials
	return &creds, nil
}
