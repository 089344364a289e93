// Package loaders batches entity lookups so a whole request resolves each
// entity type with a single store query.
package loaders

import (
	"context"
	"sort"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
)

// batchWait bounds how long a loader waits for more keys before firing.
// Loaders fire as soon as every expected key is queued, so this is only a
// safety net.
const batchWait = time.Second

// EntityLoaders holds one loader per entity type for one integration
type EntityLoaders struct {
	codes   map[entities.EntityType][]string
	loaders map[entities.EntityType]*dataloader.Loader[string, *entities.Entity]
}

// NewEntityLoaders creates a loader per entity type in codes. Each loader's
// batch capacity equals the number of codes of its type, so loading them
// all costs one resolver call per type.
func NewEntityLoaders(resolver providers.EntityCodeResolver, integration *entities.Integration, codes map[entities.EntityType][]string) *EntityLoaders {
	l := &EntityLoaders{
		codes:   make(map[entities.EntityType][]string, len(codes)),
		loaders: make(map[entities.EntityType]*dataloader.Loader[string, *entities.Entity], len(codes)),
	}
	for entityType, list := range codes {
		if len(list) == 0 {
			continue
		}
		l.codes[entityType] = list
		l.loaders[entityType] = dataloader.NewBatchedLoader(
			batchFunc(resolver, integration, entityType),
			dataloader.WithBatchCapacity[string, *entities.Entity](len(list)),
			dataloader.WithWait[string, *entities.Entity](batchWait),
		)
	}
	return l
}

func batchFunc(resolver providers.EntityCodeResolver, integration *entities.Integration, entityType entities.EntityType) dataloader.BatchFunc[string, *entities.Entity] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Entity] {
		results := make([]*dataloader.Result[*entities.Entity], len(keys))
		byCode, err := resolver.ResolveCodes(ctx, integration, entityType, keys)

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*entities.Entity]{Error: err}
				continue
			}
			// unknown codes resolve to nil, not to an error
			results[i] = &dataloader.Result[*entities.Entity]{Data: byCode[key]}
		}
		return results
	}
}

// Types returns the entity types with at least one code, sorted
func (l *EntityLoaders) Types() []entities.EntityType {
	types := make([]entities.EntityType, 0, len(l.loaders))
	for entityType := range l.loaders {
		types = append(types, entityType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// LoadAll resolves every code of every type. The result maps type and code
// to the stored entity; unknown codes are absent.
func (l *EntityLoaders) LoadAll(ctx context.Context) (map[entities.EntityType]map[string]*entities.Entity, error) {
	thunks := make(map[entities.EntityType]dataloader.ThunkMany[*entities.Entity], len(l.loaders))
	for _, entityType := range l.Types() {
		thunks[entityType] = l.loaders[entityType].LoadMany(ctx, l.codes[entityType])
	}

	resolved := make(map[entities.EntityType]map[string]*entities.Entity, len(thunks))
	for entityType, thunk := range thunks {
		values, errs := thunk()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}

		byCode := make(map[string]*entities.Entity, len(values))
		for i, code := range l.codes[entityType] {
			if i < len(values) && values[i] != nil {
				byCode[code] = values[i]
			}
		}
		resolved[entityType] = byCode
	}
	return resolved, nil
}
