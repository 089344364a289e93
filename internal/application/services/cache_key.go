package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
)

const (
	entityCacheNamespace       = "erp:entities"
	availabilityCacheNamespace = "erp:availability"
)

// CacheKeyParams keeps only the params that change the upstream listing of
// entityType. Requests that differ in any other field share a cache entry.
func CacheKeyParams(entityType entities.EntityType, params entities.ERPParams) entities.ERPParams {
	switch entityType {
	case entities.EntityTypeInsurancePlan:
		return entities.ERPParams{
			InsuranceCode:       params.InsuranceCode,
			AppointmentTypeCode: params.AppointmentTypeCode,
		}
	case entities.EntityTypeInsuranceSubPlan, entities.EntityTypePlanCategory:
		return entities.ERPParams{
			InsuranceCode:       params.InsuranceCode,
			AppointmentTypeCode: params.AppointmentTypeCode,
			InsurancePlanCode:   params.InsurancePlanCode,
		}
	case entities.EntityTypeSpeciality, entities.EntityTypeProcedure:
		params = params.WithoutInsurance()
	}

	if !entityType.UsesPatientContext() {
		params = params.WithoutPatient()
	}
	return params
}

type entityCacheKeyPayload struct {
	Version int                `json:"v"`
	Params  entities.ERPParams `json:"p"`
}

// EntityCacheKey derives the cache key of an entity listing
func EntityCacheKey(integrationID string, entityType entities.EntityType, params entities.ERPParams) string {
	digest := hashJSON(entityCacheKeyPayload{
		Version: entities.ERPParamsVersion,
		Params:  CacheKeyParams(entityType, params),
	})
	return EntityCachePrefix(integrationID, entityType) + digest
}

// EntityCachePrefix is shared by every cached listing of one entity type
func EntityCachePrefix(integrationID string, entityType entities.EntityType) string {
	return fmt.Sprintf("%s:%s:%s:", entityCacheNamespace, integrationID, entityType)
}

type availabilityCacheKeyPayload struct {
	Version int                        `json:"v"`
	Query   entities.AvailabilityQuery `json:"q"`
}

// AvailabilityCacheKey derives the cache key of raw upstream slots for query
func AvailabilityCacheKey(integrationID string, query entities.AvailabilityQuery) string {
	query.FromDate = query.FromDate.UTC()
	query.UntilDate = query.UntilDate.UTC()
	digest := hashJSON(availabilityCacheKeyPayload{
		Version: entities.ERPParamsVersion,
		Query:   query,
	})
	return fmt.Sprintf("%s:%s:%s", availabilityCacheNamespace, integrationID, digest)
}

// hashJSON hashes the JSON encoding of v. Struct fields encode in
// declaration order and map keys sorted, so equal values hash equal.
func hashJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// only plain data types reach here
		raw = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
