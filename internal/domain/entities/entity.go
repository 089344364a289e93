package entities

import (
	"time"
)

// EntityType names a kind of normalized ERP object
type EntityType string

const (
	EntityTypeDoctor                   EntityType = "doctor"
	EntityTypeProcedure                EntityType = "procedure"
	EntityTypeSpeciality               EntityType = "speciality"
	EntityTypeInsurance                EntityType = "insurance"
	EntityTypeInsurancePlan            EntityType = "insurance_plan"
	EntityTypeInsuranceSubPlan         EntityType = "insurance_sub_plan"
	EntityTypePlanCategory             EntityType = "plan_category"
	EntityTypeOrganizationUnit         EntityType = "organization_unit"
	EntityTypeOrganizationUnitLocation EntityType = "organization_unit_location"
	EntityTypeOccupationArea           EntityType = "occupation_area"
	EntityTypeTypeOfService            EntityType = "type_of_service"
	EntityTypeLaterality               EntityType = "laterality"
	EntityTypeAppointmentType          EntityType = "appointment_type"
)

// AllEntityTypes lists every entity type in a stable order
var AllEntityTypes = []EntityType{
	EntityTypeDoctor,
	EntityTypeProcedure,
	EntityTypeSpeciality,
	EntityTypeInsurance,
	EntityTypeInsurancePlan,
	EntityTypeInsuranceSubPlan,
	EntityTypePlanCategory,
	EntityTypeOrganizationUnit,
	EntityTypeOrganizationUnitLocation,
	EntityTypeOccupationArea,
	EntityTypeTypeOfService,
	EntityTypeLaterality,
	EntityTypeAppointmentType,
}

// UsesPatientContext reports whether patient age and sex narrow results for
// this entity type.
func (t EntityType) UsesPatientContext() bool {
	switch t {
	case EntityTypeDoctor, EntityTypeProcedure, EntityTypeSpeciality:
		return true
	}
	return false
}

// ScheduleType classifies appointment types
type ScheduleType string

const (
	ScheduleTypeConsultation ScheduleType = "consultation"
	ScheduleTypeExam         ScheduleType = "exam"
)

// Reference is a weak link from an entity to another entity. It never
// implies ownership.
type Reference struct {
	Type  EntityType `json:"type"`
	RefID string     `json:"refId"`
}

// EntityParams holds type-specific constraints. Extra carries
// integration-specific keys that have no typed field.
type EntityParams struct {
	MinimumAge              *int              `json:"minimumAge,omitempty"`
	MaximumAge              *int              `json:"maximumAge,omitempty"`
	Sex                     string            `json:"sex,omitempty"`
	ReferenceClassification string            `json:"referenceClassification,omitempty"`
	ScheduleType            ScheduleType      `json:"scheduleType,omitempty"`
	SpecialityType          string            `json:"specialityType,omitempty"`
	Extra                   map[string]string `json:"extra,omitempty"`
}

// Entity represents a normalized ERP object stored locally
type Entity struct {
	ID            string     `json:"id" db:"id"`
	IntegrationID string     `json:"integrationId" db:"integration_id"`
	EntityType    EntityType `json:"entityType" db:"entity_type"`
	Code          string     `json:"code" db:"code"`
	Name          string     `json:"name" db:"name"`
	FriendlyName  string     `json:"friendlyName,omitempty" db:"friendly_name"`
	ActiveErp     bool       `json:"activeErp" db:"active_erp"`

	CanView           bool `json:"canView" db:"can_view"`
	CanSchedule       bool `json:"canSchedule" db:"can_schedule"`
	CanConfirmActive  bool `json:"canConfirmActive" db:"can_confirm_active"`
	CanConfirmPassive bool `json:"canConfirmPassive" db:"can_confirm_passive"`
	CanCancel         bool `json:"canCancel" db:"can_cancel"`
	CanReschedule     bool `json:"canReschedule" db:"can_reschedule"`

	// Order comes from the upstream listing and is only meaningful for the
	// request that produced it.
	Order *int `json:"order,omitempty" db:"-"`

	Params     EntityParams `json:"params" db:"params"`
	References []Reference  `json:"references,omitempty" db:"references"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NewEntity returns an entity with every visibility flag enabled
func NewEntity(integrationID string, entityType EntityType, code, name string) *Entity {
	return &Entity{
		IntegrationID:     integrationID,
		EntityType:        entityType,
		Code:              code,
		Name:              name,
		ActiveErp:         true,
		CanView:           true,
		CanSchedule:       true,
		CanConfirmActive:  true,
		CanConfirmPassive: true,
		CanCancel:         true,
		CanReschedule:     true,
	}
}

// IsVisible reports whether the entity is active on the ERP and visible to
// end users.
func (e *Entity) IsVisible() bool {
	return e != nil && e.ActiveErp && e.CanView
}

// AcceptsPatient checks the age and sex bounds in Params. A nil patient
// or unknown patient attributes never exclude the entity.
func (e *Entity) AcceptsPatient(p *PatientContext, now time.Time) bool {
	if p == nil {
		return true
	}
	if age, ok := p.AgeAt(now); ok {
		if e.Params.MinimumAge != nil && age < *e.Params.MinimumAge {
			return false
		}
		if e.Params.MaximumAge != nil && age > *e.Params.MaximumAge {
			return false
		}
	}
	if e.Params.Sex != "" && p.Sex != "" && e.Params.Sex != p.Sex {
		return false
	}
	return true
}

// ReferencesOf returns the reference ids of the given type
func (e *Entity) ReferencesOf(t EntityType) []string {
	var ids []string
	for _, ref := range e.References {
		if ref.Type == t {
			ids = append(ids, ref.RefID)
		}
	}
	return ids
}

// ERPEntity is an entity as listed by the ERP, before local resolution
type ERPEntity struct {
	Code  string         `json:"code"`
	Name  string         `json:"name"`
	Order *int           `json:"order,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// ExternalDoctor is a doctor known only through ERP responses
type ExternalDoctor struct {
	IntegrationID string `json:"integrationId" db:"integration_id"`
	Code          string `json:"code" db:"code"`
	Name          string `json:"name" db:"name"`
	Virtual       bool   `json:"virtual" db:"virtual"`
}
