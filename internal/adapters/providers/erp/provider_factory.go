package erp

import (
	"context"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/erpapi"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
)

// ERPProviderConfig configures ERP providers.
type ERPProviderConfig struct {
	// Sender reaches the real ERP. Nil selects the mock provider.
	Sender            erpapi.Sender
	UseMock           bool
	AllowMockFallback bool
}

// NewERPProvider creates an ERP provider with optional mock fallback.
func NewERPProvider(cfg ERPProviderConfig) providers.ERPProvider {
	if cfg.UseMock || cfg.Sender == nil {
		// No real ERP configured; use mock provider for dev.
		return NewMockAdapter()
	}

	primary := NewERPAdapter(cfg.Sender)
	if !cfg.AllowMockFallback {
		return primary
	}

	return &FallbackProvider{
		primary:  primary,
		fallback: NewMockAdapter(),
	}
}

// FallbackProvider serves reads from the fallback when the primary fails.
// Writes always go to the primary.
type FallbackProvider struct {
	primary  providers.ERPProvider
	fallback providers.ERPProvider
}

func (p *FallbackProvider) ListEntities(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, params entities.ERPParams) ([]entities.ERPEntity, error) {
	items, err := p.primary.ListEntities(ctx, integration, entityType, params)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("integration_id", integration.ID).
			Str("entity_type", string(entityType)).
			Msg("ERP entity listing failed, serving mock data")
		return p.fallback.ListEntities(ctx, integration, entityType, params)
	}
	return items, nil
}

func (p *FallbackProvider) ListAvailableSlots(ctx context.Context, integration *entities.Integration, query entities.AvailabilityQuery) ([]entities.RawAvailabilitySlot, error) {
	slots, err := p.primary.ListAvailableSlots(ctx, integration, query)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("integration_id", integration.ID).
			Msg("ERP availability failed, serving mock slots")
		return p.fallback.ListAvailableSlots(ctx, integration, query)
	}
	return slots, nil
}

func (p *FallbackProvider) CreateSchedule(ctx context.Context, integration *entities.Integration, req entities.CreateScheduleRequest) (*entities.ScheduleReceipt, error) {
	return p.primary.CreateSchedule(ctx, integration, req)
}

func (p *FallbackProvider) ConfirmSchedule(ctx context.Context, integration *entities.Integration, scheduleCode string) error {
	return p.primary.ConfirmSchedule(ctx, integration, scheduleCode)
}

func (p *FallbackProvider) CancelSchedule(ctx context.Context, integration *entities.Integration, scheduleCode, reason string) error {
	return p.primary.CancelSchedule(ctx, integration, scheduleCode, reason)
}
