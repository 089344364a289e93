package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/adapters/cache"
	"github.com/zatekoja/erpbridge/backend/internal/adapters/database"
	"github.com/zatekoja/erpbridge/backend/internal/adapters/events"
	"github.com/zatekoja/erpbridge/backend/internal/adapters/providers/erp"
	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/erpapi"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	"github.com/zatekoja/erpbridge/backend/pkg/config"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// app holds the wired engine for one CLI invocation
type app struct {
	cfg           *config.Config
	integrations  repositories.IntegrationRepository
	erp           providers.ERPProvider
	entityStore   *database.EntityAdapter
	correlation   *services.CorrelationResolver
	availability  *services.AvailabilityResolver
	confirmations *services.ScheduleConfirmationBuilder
	warmer        *services.CacheWarmingService
	closers       []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.LoggerFromContext(ctx)
	a := &app{cfg: cfg}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			a.closers = append(a.closers, shutdown)
			logger.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return pgClient.Close() })

	// The engine works without Redis: no caching and no audit trail.
	var cacheProvider providers.CacheProvider
	var auditSink providers.AuditSink
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Redis client, running without cache and audit")
	} else {
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
		cacheProvider = cache.NewRedisAdapter(redisClient)
		auditSink = events.NewRedisAuditSink(redisClient, cfg.Audit.Stream, cfg.Audit.MaxLen)
	}

	a.integrations = database.NewIntegrationAdapter(pgClient)
	a.entityStore = database.NewEntityAdapter(pgClient)

	var sender erpapi.Sender
	if !cfg.ERP.UseMock {
		credentials := database.NewCredentialsAdapter(pgClient,
			database.NewStaticCredentialsProvider(cfg.ERP.APIURL, cfg.ERP.APIToken))
		sender = erpapi.NewResilientClient(
			erpapi.NewHTTPClient(credentials, cfg.ERP.Timeout, metrics),
			auditSink,
			erpapi.WithCooldown(cfg.ERP.RetryCooldown),
			erpapi.WithMetrics(metrics),
		)
	}
	a.erp = erp.NewERPProvider(erp.ERPProviderConfig{
		Sender:            sender,
		UseMock:           cfg.ERP.UseMock,
		AllowMockFallback: cfg.ERP.AllowMockFallback,
	})

	a.correlation = services.NewCorrelationResolver(a.erp, a.entityStore, cacheProvider, services.CorrelationConfig{
		EntityTTLs: entityTTLs(cfg.Cache.EntityTTLs),
		Metrics:    metrics,
	})
	a.availability = services.NewAvailabilityResolver(
		a.erp,
		a.correlation,
		a.entityStore,
		nil,
		nil,
		cacheProvider,
		services.AvailabilityConfig{
			DefaultMaxSpanDays: cfg.ERP.MaxSpanDays,
			DefaultCacheTTL:    cfg.ERP.AvailabilityTTL,
			Audit:              auditSink,
			Metrics:            metrics,
		},
	)
	a.confirmations = services.NewScheduleConfirmationBuilder(a.correlation, nil)
	a.warmer = services.NewCacheWarmingService(a.correlation, entities.AllEntityTypes)

	return a, nil
}

// integration loads an enabled integration
func (a *app) integration(ctx context.Context, id string) (*entities.Integration, error) {
	integration, err := a.integrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !integration.Enabled {
		return nil, apperrors.NewValidationError(fmt.Sprintf("integration %s is disabled", id))
	}
	return integration, nil
}

func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func entityTTLs(raw map[string]time.Duration) map[entities.EntityType]time.Duration {
	ttls := make(map[entities.EntityType]time.Duration, len(raw))
	for name, ttl := range raw {
		ttls[entities.EntityType(name)] = ttl
	}
	return ttls
}
