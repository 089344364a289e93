package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/erpbridge/backend/internal/application/loaders"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
)

// ConfirmationOptions tunes a confirmation batch
type ConfirmationOptions struct {
	// MaxConfirmable caps the confirmable list. Zero means no cap.
	MaxConfirmable int
}

// ScheduleConfirmationBuilder resolves the entities of a batch of schedules
// and splits the batch by confirmation eligibility
type ScheduleConfirmationBuilder struct {
	resolver providers.EntityCodeResolver
	flows    providers.FlowMatcher
}

// NewScheduleConfirmationBuilder creates a confirmation builder. flows may be nil.
func NewScheduleConfirmationBuilder(resolver providers.EntityCodeResolver, flows providers.FlowMatcher) *ScheduleConfirmationBuilder {
	return &ScheduleConfirmationBuilder{
		resolver: resolver,
		flows:    flows,
	}
}

// BuildConfirmations resolves each entity type once for the whole batch.
// A schedule can be actively confirmed unless one of its matched entities
// forbids it; unmatched codes never block.
func (b *ScheduleConfirmationBuilder) BuildConfirmations(
	ctx context.Context,
	integration *entities.Integration,
	schedules []entities.RawSchedule,
	opts ConfirmationOptions,
) (*entities.ConfirmationBatch, error) {
	ctx, span := observability.StartSpan(ctx, "ScheduleConfirmationBuilder.BuildConfirmations",
		attribute.String("erp.integration_id", integration.ID),
		attribute.Int("schedules.count", len(schedules)),
	)
	defer span.End()

	codes := make(map[entities.EntityType][]string)
	seen := make(map[entities.EntityType]map[string]struct{})
	for i := range schedules {
		for entityType, code := range schedules[i].EntityCodes() {
			if seen[entityType] == nil {
				seen[entityType] = make(map[string]struct{})
			}
			if _, ok := seen[entityType][code]; ok {
				continue
			}
			seen[entityType][code] = struct{}{}
			codes[entityType] = append(codes[entityType], code)
		}
	}

	entityLoaders := loaders.NewEntityLoaders(b.resolver, integration, codes)
	resolved, err := entityLoaders.LoadAll(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	batch := &entities.ConfirmationBatch{
		Confirmable: []*entities.ScheduleConfirmation{},
		Excluded:    []*entities.ScheduleConfirmation{},
	}
	for i := range schedules {
		confirmation := &entities.ScheduleConfirmation{
			Schedule: schedules[i],
			Entities: make(map[entities.EntityType]*entities.Entity),
		}
		for entityType, code := range schedules[i].EntityCodes() {
			entity := resolved[entityType][code]
			if entity == nil {
				continue
			}
			confirmation.Entities[entityType] = entity
			if !entity.CanConfirmActive {
				confirmation.BlockedBy = append(confirmation.BlockedBy, entityType)
			}
		}
		sort.Slice(confirmation.BlockedBy, func(i, j int) bool {
			return confirmation.BlockedBy[i] < confirmation.BlockedBy[j]
		})
		confirmation.CanConfirmActive = len(confirmation.BlockedBy) == 0

		if confirmation.CanConfirmActive {
			batch.Confirmable = append(batch.Confirmable, confirmation)
		} else {
			batch.Excluded = append(batch.Excluded, confirmation)
		}
	}

	if b.flows != nil && len(batch.Confirmable) > 0 {
		if err := b.flows.Match(ctx, integration, batch.Confirmable); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	total := len(batch.Confirmable)
	if opts.MaxConfirmable > 0 && total > opts.MaxConfirmable {
		batch.Confirmable = batch.Confirmable[:opts.MaxConfirmable]
		batch.Metadata.Truncated = true
	}

	batch.Metadata.Total = len(schedules)
	batch.Metadata.Confirmable = len(batch.Confirmable)
	batch.Metadata.Excluded = len(batch.Excluded)
	batch.Metadata.ResolvedTypes = len(entityLoaders.Types())

	observability.LoggerFromContext(ctx).Info().
		Str("integration_id", integration.ID).
		Int("total", batch.Metadata.Total).
		Int("confirmable", batch.Metadata.Confirmable).
		Int("excluded", batch.Metadata.Excluded).
		Bool("truncated", batch.Metadata.Truncated).
		Msg("Built schedule confirmations")

	return batch, nil
}
