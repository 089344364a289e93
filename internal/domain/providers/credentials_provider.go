package providers

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

// CredentialsProvider returns the ERP endpoint and token of an integration
type CredentialsProvider interface {
	GetConfig(ctx context.Context, integration *entities.Integration) (*entities.Credentials, error)
}
