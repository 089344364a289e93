package services

import (
	"strings"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/pkg/compositecode"
)

// BuildERPParams maps a correlation filter to ERP query parameters for a
// listing of entityType. Composite codes are decoded so only the segment the
// ERP understands goes upstream. Patient age and sex are merged only for
// entity types they narrow.
func BuildERPParams(entityType entities.EntityType, filter entities.CorrelationFilter, patient *entities.PatientContext, now time.Time) (entities.ERPParams, error) {
	params, err := filterParams(filter)
	if err != nil {
		return entities.ERPParams{}, err
	}
	if entityType.UsesPatientContext() {
		applyPatient(&params, patient, now)
	}
	return params, nil
}

// BuildAvailabilityParams maps a correlation filter to the parameters of an
// availability query. Slots are doctor-scoped, so patient attributes apply.
func BuildAvailabilityParams(filter entities.CorrelationFilter, patient *entities.PatientContext, now time.Time) (entities.ERPParams, error) {
	return BuildERPParams(entities.EntityTypeDoctor, filter, patient, now)
}

func applyPatient(params *entities.ERPParams, patient *entities.PatientContext, now time.Time) {
	if patient == nil {
		return
	}
	if age, ok := patient.AgeAt(now); ok {
		params.PatientAge = &age
	}
	params.PatientSex = patient.Sex
}

func filterParams(filter entities.CorrelationFilter) (entities.ERPParams, error) {
	var p entities.ERPParams

	p.DoctorCode = filter.Code(entities.EntityTypeDoctor)
	p.InsuranceCode = filter.Code(entities.EntityTypeInsurance)
	p.OrganizationUnitCode = filter.Code(entities.EntityTypeOrganizationUnit)
	p.OrganizationUnitLocationCode = filter.Code(entities.EntityTypeOrganizationUnitLocation)
	p.OccupationAreaCode = filter.Code(entities.EntityTypeOccupationArea)
	p.TypeOfServiceCode = filter.Code(entities.EntityTypeTypeOfService)
	p.LateralityCode = filter.Code(entities.EntityTypeLaterality)
	p.AppointmentTypeCode = filter.Code(entities.EntityTypeAppointmentType)

	if code := filter.Code(entities.EntityTypeSpeciality); code != "" {
		if isComposite(code) {
			parts, err := compositecode.SpecialityCode(code).Decode()
			if err != nil {
				return p, err
			}
			p.SpecialityCode = parts.Code
			p.SpecialityType = parts.SpecialityType
		} else {
			p.SpecialityCode = code
		}
	}

	if code := filter.Code(entities.EntityTypeProcedure); code != "" {
		if isComposite(code) {
			parts, err := compositecode.ProcedureCode(code).Decode()
			if err != nil {
				return p, err
			}
			p.ProcedureCode = parts.Code
			p.SpecialityCode = firstNonEmpty(p.SpecialityCode, parts.SpecialityCode)
			p.SpecialityType = firstNonEmpty(p.SpecialityType, parts.SpecialityType)
			p.AreaCode = parts.AreaCode
			p.LateralityCode = firstNonEmpty(p.LateralityCode, parts.LateralityCode)
		} else {
			p.ProcedureCode = code
		}
	}

	if code := filter.Code(entities.EntityTypeInsurancePlan); code != "" {
		if isComposite(code) {
			parts, err := compositecode.PlanCode(code).Decode()
			if err != nil {
				return p, err
			}
			p.InsurancePlanCode = parts.Code
			p.InsuranceCode = firstNonEmpty(p.InsuranceCode, parts.InsuranceCode)
		} else {
			p.InsurancePlanCode = code
		}
	}

	if code := filter.Code(entities.EntityTypeInsuranceSubPlan); code != "" {
		if isComposite(code) {
			parts, err := compositecode.SubPlanCode(code).Decode()
			if err != nil {
				return p, err
			}
			p.InsuranceSubPlanCode = parts.Code
			p.InsurancePlanCode = firstNonEmpty(p.InsurancePlanCode, parts.PlanCode)
			p.InsuranceCode = firstNonEmpty(p.InsuranceCode, parts.InsuranceCode)
		} else {
			p.InsuranceSubPlanCode = code
		}
	}

	// categories share the plan layout
	if code := filter.Code(entities.EntityTypePlanCategory); code != "" {
		if isComposite(code) {
			parts, err := compositecode.PlanCode(code).Decode()
			if err != nil {
				return p, err
			}
			p.PlanCategoryCode = parts.Code
			p.InsuranceCode = firstNonEmpty(p.InsuranceCode, parts.InsuranceCode)
		} else {
			p.PlanCategoryCode = code
		}
	}

	return p, nil
}

// isComposite treats any code carrying the delimiter as composite, so a
// corrupted composite code fails to decode instead of going upstream as is.
func isComposite(code string) bool {
	return strings.Contains(code, compositecode.Delimiter)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
