package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
)

// CacheWarmingService refreshes the unfiltered entity listings of slow
// changing reference types so the first caller of the day hits the cache
type CacheWarmingService struct {
	resolver *CorrelationResolver
	types    []entities.EntityType
}

// NewCacheWarmingService creates a cache warmer for types. Types without a
// cache TTL on the resolver are skipped.
func NewCacheWarmingService(resolver *CorrelationResolver, types []entities.EntityType) *CacheWarmingService {
	return &CacheWarmingService{
		resolver: resolver,
		types:    types,
	}
}

// WarmIntegration drops every cached listing of each type and reloads the
// unfiltered one. A failing type does not
// stop the others; all failures are returned together.
func (s *CacheWarmingService) WarmIntegration(ctx context.Context, integration *entities.Integration) (int, error) {
	logger := observability.LoggerFromContext(ctx)
	logger.Info().Str("integration_id", integration.ID).Msg("Starting cache warming")

	warmed := 0
	var errs []error
	for _, entityType := range s.types {
		if s.resolver.ttls[entityType] <= 0 {
			continue
		}

		if dropped, err := s.resolver.InvalidateType(ctx, integration, entityType); err != nil {
			logger.Warn().Err(err).Str("entity_type", string(entityType)).Msg("Failed to drop cached listings")
		} else {
			logger.Debug().Str("entity_type", string(entityType)).Int("dropped", dropped).Msg("Dropped cached listings")
		}

		list, err := s.resolver.Resolve(ctx, integration, entityType, nil, true, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", entityType, err))
			continue
		}
		warmed++
		logger.Debug().Str("entity_type", string(entityType)).Int("count", len(list)).Msg("Warmed entity listing")
	}

	logger.Info().Str("integration_id", integration.ID).Int("warmed", warmed).Msg("Cache warming completed")
	return warmed, errors.Join(errs...)
}

// StartPeriodicWarming warms every integration once, then again on each tick
// until ctx is cancelled
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, integrations []*entities.Integration, interval time.Duration) {
	logger := observability.LoggerFromContext(ctx)
	warmAll := func() {
		for _, integration := range integrations {
			if _, err := s.WarmIntegration(ctx, integration); err != nil {
				logger.Warn().Err(err).Str("integration_id", integration.ID).Msg("Cache warming failed")
			}
		}
	}

	warmAll()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				warmAll()
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}
