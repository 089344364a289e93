package entities

import (
	"time"
)

// RawSchedule is a booked appointment as returned by the ERP
type RawSchedule struct {
	ScheduleCode                 string         `json:"scheduleCode"`
	PatientCode                  string         `json:"patientCode"`
	Date                         time.Time      `json:"date"`
	DoctorCode                   string         `json:"doctorCode,omitempty"`
	ProcedureCode                string         `json:"procedureCode,omitempty"`
	SpecialityCode               string         `json:"specialityCode,omitempty"`
	InsuranceCode                string         `json:"insuranceCode,omitempty"`
	InsurancePlanCode            string         `json:"insurancePlanCode,omitempty"`
	InsuranceSubPlanCode         string         `json:"insuranceSubPlanCode,omitempty"`
	OrganizationUnitCode         string         `json:"organizationUnitCode,omitempty"`
	OrganizationUnitLocationCode string         `json:"organizationUnitLocationCode,omitempty"`
	AppointmentTypeCode          string         `json:"appointmentTypeCode,omitempty"`
	TypeOfServiceCode            string         `json:"typeOfServiceCode,omitempty"`
	Data                         map[string]any `json:"data,omitempty"`
}

// EntityCodes returns the non-empty entity codes the schedule references
func (s *RawSchedule) EntityCodes() map[EntityType]string {
	codes := map[EntityType]string{
		EntityTypeDoctor:                   s.DoctorCode,
		EntityTypeProcedure:                s.ProcedureCode,
		EntityTypeSpeciality:               s.SpecialityCode,
		EntityTypeInsurance:                s.InsuranceCode,
		EntityTypeInsurancePlan:            s.InsurancePlanCode,
		EntityTypeInsuranceSubPlan:         s.InsuranceSubPlanCode,
		EntityTypeOrganizationUnit:         s.OrganizationUnitCode,
		EntityTypeOrganizationUnitLocation: s.OrganizationUnitLocationCode,
		EntityTypeAppointmentType:          s.AppointmentTypeCode,
		EntityTypeTypeOfService:            s.TypeOfServiceCode,
	}
	for t, code := range codes {
		if code == "" {
			delete(codes, t)
		}
	}
	return codes
}

// ScheduleConfirmation is a schedule with its resolved entities and
// eligibility flags
type ScheduleConfirmation struct {
	Schedule         RawSchedule            `json:"schedule"`
	Entities         map[EntityType]*Entity `json:"entities"`
	CanConfirmActive bool                   `json:"canConfirmActive"`

	// BlockedBy lists entity types whose entity forbids active confirmation.
	BlockedBy []EntityType `json:"blockedBy,omitempty"`

	// Flows are business flows matched for confirmable schedules.
	Flows []string `json:"flows,omitempty"`
}

// ConfirmationMetadata summarizes a confirmation batch
type ConfirmationMetadata struct {
	Total       int `json:"total"`
	Confirmable int `json:"confirmable"`
	Excluded    int `json:"excluded"`
	// Truncated is set when MaxConfirmable cut the confirmable list.
	Truncated bool `json:"truncated"`
	// ResolvedTypes counts one batched resolution per entity type.
	ResolvedTypes int `json:"resolvedTypes"`
}

// ConfirmationBatch is the result of building confirmations
type ConfirmationBatch struct {
	Confirmable []*ScheduleConfirmation `json:"confirmable"`
	Excluded    []*ScheduleConfirmation `json:"excluded"`
	Metadata    ConfirmationMetadata    `json:"metadata"`
}

// CreateScheduleRequest books a slot on the ERP
type CreateScheduleRequest struct {
	Slot        RawAvailabilitySlot `json:"slot"`
	PatientCode string              `json:"patientCode"`
	Params      ERPParams           `json:"params"`
}

// ScheduleReceipt is the ERP acknowledgement of a created schedule
type ScheduleReceipt struct {
	ScheduleCode string         `json:"scheduleCode"`
	Data         map[string]any `json:"data,omitempty"`
}
