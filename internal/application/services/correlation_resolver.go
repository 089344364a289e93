package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

// CorrelationConfig tunes a CorrelationResolver
type CorrelationConfig struct {
	// EntityTTLs caches listings per entity type. Types without a positive
	// TTL are never cached.
	EntityTTLs map[entities.EntityType]time.Duration
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// CorrelationResolver turns ERP listings into locally stored entities with
// their business flags
type CorrelationResolver struct {
	erp        providers.ERPProvider
	entityRepo repositories.EntityRepository
	cache      providers.CacheProvider
	ttls       map[entities.EntityType]time.Duration
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewCorrelationResolver creates a new correlation resolver. cache may be nil.
func NewCorrelationResolver(
	erp providers.ERPProvider,
	entityRepo repositories.EntityRepository,
	cache providers.CacheProvider,
	cfg CorrelationConfig,
) *CorrelationResolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CorrelationResolver{
		erp:        erp,
		entityRepo: entityRepo,
		cache:      cache,
		ttls:       cfg.EntityTTLs,
		metrics:    cfg.Metrics,
		now:        now,
	}
}

var _ providers.EntityCodeResolver = (*CorrelationResolver)(nil)

// Resolve lists the entities of entityType the ERP offers for filter and
// returns the stored records that are active, visible and acceptable for
// the patient, sorted by upstream order then name.
func (r *CorrelationResolver) Resolve(
	ctx context.Context,
	integration *entities.Integration,
	entityType entities.EntityType,
	filter entities.CorrelationFilter,
	useCache bool,
	patient *entities.PatientContext,
) ([]*entities.Entity, error) {
	ctx, span := observability.StartSpan(ctx, "CorrelationResolver.Resolve",
		attribute.String("erp.integration_id", integration.ID),
		attribute.String("erp.entity_type", string(entityType)),
	)
	defer span.End()

	now := r.now()
	params, err := BuildERPParams(entityType, filter, patient, now)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	key := EntityCacheKey(integration.ID, entityType, params)
	ttl := r.ttls[entityType]
	caching := useCache && r.cache != nil && ttl > 0

	if caching {
		if cached, ok := r.readCache(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return narrowForRequest(cached, entityType, filter, patient, now), nil
		}
	}

	items, err := r.erp.ListEntities(ctx, integration, entityType, params)
	if err != nil {
		err = asIntegrationError(integration, fmt.Sprintf("failed to list %s entities", entityType), err)
		observability.RecordError(span, err)
		return nil, err
	}

	orderByCode := make(map[string]*int, len(items))
	codes := make([]string, 0, len(items))
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		if _, seen := orderByCode[item.Code]; seen {
			continue
		}
		orderByCode[item.Code] = item.Order
		codes = append(codes, item.Code)
	}

	stored, err := r.entityRepo.FindByCodes(ctx, integration.ID, entityType, codes, repositories.EntityFilter{})
	if err != nil {
		err = apperrors.NewInternalError(fmt.Sprintf("failed to resolve %s entities", entityType), err)
		observability.RecordError(span, err)
		return nil, err
	}

	// The cache key only covers what shapes the upstream listing, so the
	// cached list stops at visibility. Patient and reference narrowing run
	// per request.
	visible := make([]*entities.Entity, 0, len(stored))
	for _, entity := range stored {
		entity.Order = orderByCode[entity.Code]
		if entity.IsVisible() {
			visible = append(visible, entity)
		}
	}
	sortByOrderThenName(visible)

	if caching && len(visible) > 0 {
		r.writeCache(ctx, key, visible, ttl)
	}
	result := narrowForRequest(visible, entityType, filter, patient, now)

	observability.LoggerFromContext(ctx).Debug().
		Str("integration_id", integration.ID).
		Str("entity_type", string(entityType)).
		Int("upstream", len(items)).
		Int("stored", len(stored)).
		Int("resolved", len(result)).
		Msg("Resolved entities")

	return result, nil
}

// ResolveCodes returns every stored record of entityType among codes,
// including inactive and hidden ones, keyed by code. Unknown codes are
// absent from the map.
func (r *CorrelationResolver) ResolveCodes(ctx context.Context, integration *entities.Integration, entityType entities.EntityType, codes []string) (map[string]*entities.Entity, error) {
	distinct := distinctNonEmpty(codes)
	byCode := make(map[string]*entities.Entity, len(distinct))
	if len(distinct) == 0 {
		return byCode, nil
	}

	stored, err := r.entityRepo.FindByCodes(ctx, integration.ID, entityType, distinct, repositories.EntityFilter{})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to resolve %s codes", entityType), err)
	}
	for _, entity := range stored {
		byCode[entity.Code] = entity
	}
	return byCode, nil
}

// Invalidate drops the cached listing Resolve would use for these arguments
func (r *CorrelationResolver) Invalidate(
	ctx context.Context,
	integration *entities.Integration,
	entityType entities.EntityType,
	filter entities.CorrelationFilter,
	patient *entities.PatientContext,
) error {
	if r.cache == nil {
		return nil
	}
	params, err := BuildERPParams(entityType, filter, patient, r.now())
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, EntityCacheKey(integration.ID, entityType, params))
}

// InvalidateType drops every cached listing of entityType, whatever filter
// produced it
func (r *CorrelationResolver) InvalidateType(ctx context.Context, integration *entities.Integration, entityType entities.EntityType) (int, error) {
	if r.cache == nil {
		return 0, nil
	}
	return r.cache.DeletePrefix(ctx, EntityCachePrefix(integration.ID, entityType))
}

func (r *CorrelationResolver) readCache(ctx context.Context, key string) ([]*entities.Entity, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Entity cache read failed")
		}
		r.metrics.RecordCacheMiss(ctx, entityCacheNamespace)
		return nil, false
	}

	var cached []*entities.Entity
	if err := json.Unmarshal(data, &cached); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding unreadable entity cache entry")
		r.metrics.RecordCacheMiss(ctx, entityCacheNamespace)
		return nil, false
	}

	r.metrics.RecordCacheHit(ctx, entityCacheNamespace)
	return cached, true
}

func (r *CorrelationResolver) writeCache(ctx context.Context, key string, result []*entities.Entity, ttl time.Duration) {
	data, err := json.Marshal(result)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to marshal entity cache entry")
		return
	}
	if err := r.cache.Set(ctx, key, data, int(ttl.Seconds())); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Entity cache write failed")
	}
}

// narrowForRequest keeps the entities acceptable for patient that link to
// the filtered references. Order is preserved.
func narrowForRequest(
	list []*entities.Entity,
	entityType entities.EntityType,
	filter entities.CorrelationFilter,
	patient *entities.PatientContext,
	now time.Time,
) []*entities.Entity {
	result := make([]*entities.Entity, 0, len(list))
	for _, entity := range list {
		if entityType.UsesPatientContext() && !entity.AcceptsPatient(patient, now) {
			continue
		}
		if !matchesReferences(entity, filter) {
			continue
		}
		result = append(result, entity)
	}
	return result
}

// matchesReferences rejects an entity that links to entities of a type in
// the filter without linking to the filtered one. Entities with no links
// of that type are unconstrained.
func matchesReferences(entity *entities.Entity, filter entities.CorrelationFilter) bool {
	for entityType, ref := range filter {
		if ref.ID == "" {
			continue
		}
		refs := entity.ReferencesOf(entityType)
		if len(refs) == 0 {
			continue
		}
		found := false
		for _, id := range refs {
			if id == ref.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortByOrderThenName(list []*entities.Entity) {
	sort.SliceStable(list, func(i, j int) bool {
		oi, oj := list[i].Order, list[j].Order
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		}
		return list[i].Name < list[j].Name
	})
}

func distinctNonEmpty(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// asIntegrationError keeps classified upstream errors and wraps the rest
func asIntegrationError(integration *entities.Integration, message string, err error) error {
	if apperrors.IsIntegrationError(err) || apperrors.IsScheduleConflict(err) {
		return err
	}
	return apperrors.NewIntegrationError(integration.ID, message, 0, err)
}
